package topology

import (
	"testing"

	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/octant"
)

// twoBlocks is a 2x1 domain: block 0 on the left, block 1 on the right,
// sharing the edge between nodes 1 and 4.
//
//	2 --- 3 --- 5
//	|  0  |  1  |
//	0 --- 1 --- 4
func twoBlocks(t *testing.T) *Connectivity {
	t.Helper()
	c, err := New(6, [][4]int32{
		{0, 1, 2, 3},
		{1, 4, 3, 5},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewDerivesEdges(t *testing.T) {
	c := twoBlocks(t)
	if c.NumBlocks() != 2 || c.NumNodes() != 6 {
		t.Fatalf("NumBlocks, NumNodes = %d, %d", c.NumBlocks(), c.NumNodes())
	}
	// 4 edges per block, one shared: 7 distinct.
	if c.NumEdges() != 7 {
		t.Errorf("NumEdges = %d, want 7", c.NumEdges())
	}
	// The shared edge is block 0's +x edge and block 1's -x edge.
	if c.BlockEdge(0, 1) != c.BlockEdge(1, 0) {
		t.Error("blocks 0 and 1 must share an edge id across the interface")
	}
	if c.BlockEdge(0, 0) == c.BlockEdge(1, 1) {
		t.Error("outer edges must stay distinct")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		numNodes int
		conn     [][4]int32
	}{
		{"NoBlocks", 4, nil},
		{"NodeOutOfRange", 4, [][4]int32{{0, 1, 2, 7}}},
		{"NegativeNode", 4, [][4]int32{{0, 1, -1, 3}}},
		{"RepeatedCorner", 4, [][4]int32{{0, 1, 1, 3}}},
		{"DanglingNode", 5, [][4]int32{{0, 1, 2, 3}}},
		{"ZeroNodes", 0, [][4]int32{{0, 1, 2, 3}}},
		{"NonManifoldEdge", 8, [][4]int32{
			{0, 1, 2, 3},
			{1, 4, 3, 5},
			{1, 6, 3, 7},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.numNodes, tt.conn)
			if !errors.Is(err, errors.ErrCodeConnectivityInvalid) {
				t.Errorf("New = %v, want CONNECTIVITY_INVALID", err)
			}
		})
	}
}

func TestEdgeNeighbor(t *testing.T) {
	c := twoBlocks(t)

	nb, ne, reversed, ok := c.EdgeNeighbor(0, 1)
	if !ok || nb != 1 || ne != 0 || reversed {
		t.Errorf("EdgeNeighbor(0, 1) = (%d, %d, %v, %v), want (1, 0, false, true)", nb, ne, reversed, ok)
	}

	nb, ne, reversed, ok = c.EdgeNeighbor(1, 0)
	if !ok || nb != 0 || ne != 1 || reversed {
		t.Errorf("EdgeNeighbor(1, 0) = (%d, %d, %v, %v), want (0, 1, false, true)", nb, ne, reversed, ok)
	}

	if _, _, _, ok := c.EdgeNeighbor(0, 0); ok {
		t.Error("domain boundary edge must have no neighbor")
	}
}

func TestEdgeNeighborReversed(t *testing.T) {
	// Block 1 flipped: its -x edge runs from node 3 down to node 1 when
	// described in block 0's direction, so the orientation reverses.
	c, err := New(6, [][4]int32{
		{0, 1, 2, 3},
		{3, 5, 1, 4},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _, reversed, ok := c.EdgeNeighbor(0, 1)
	if !ok || !reversed {
		t.Errorf("EdgeNeighbor(0, 1) reversed = %v, want true", reversed)
	}
}

func TestTransformAcrossEdge(t *testing.T) {
	c := twoBlocks(t)
	h := octant.Side / 4

	// A level-2 quadrant just past block 0's +x edge, second slot up.
	o := octant.Octant{Block: 0, X: octant.Side, Y: h, Level: 2}
	got, ok := c.TransformAcrossEdge(0, 1, o)
	if !ok {
		t.Fatal("TransformAcrossEdge reported no neighbor")
	}
	want := octant.Octant{Block: 1, X: 0, Y: h, Level: 2}
	if got != want {
		t.Errorf("TransformAcrossEdge = %+v, want %+v", got, want)
	}
}

func TestTransformAcrossEdgeReversed(t *testing.T) {
	c, err := New(6, [][4]int32{
		{0, 1, 2, 3},
		{3, 5, 1, 4},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := octant.Side / 4

	// With the neighbor's along-edge axis reversed, the second slot from
	// the bottom in block 0 is the second slot from the top in block 1.
	o := octant.Octant{Block: 0, X: octant.Side, Y: h, Level: 2}
	got, ok := c.TransformAcrossEdge(0, 1, o)
	if !ok {
		t.Fatal("TransformAcrossEdge reported no neighbor")
	}
	want := octant.Octant{Block: 1, X: 0, Y: octant.Side - 2*h, Level: 2}
	if got != want {
		t.Errorf("TransformAcrossEdge = %+v, want %+v", got, want)
	}
}

func TestTransformPointAcrossEdge(t *testing.T) {
	c := twoBlocks(t)
	nb, ne, nu, ok := c.TransformPointAcrossEdge(0, 1, octant.Side/2)
	if !ok || nb != 1 || ne != 0 || nu != octant.Side/2 {
		t.Errorf("TransformPointAcrossEdge = (%d, %d, %d, %v)", nb, ne, nu, ok)
	}
}

func TestCornerOctantAndEdgePoint(t *testing.T) {
	h := int32(1) << (octant.MaxLevel - 1)
	o := CornerOctant(2, 3, 1)
	want := octant.Octant{Block: 2, X: octant.Side - h, Y: octant.Side - h, Level: 1}
	if o != want {
		t.Errorf("CornerOctant = %+v, want %+v", o, want)
	}

	x, y := EdgePoint(1, 123)
	if x != octant.Side || y != 123 {
		t.Errorf("EdgePoint(1, 123) = (%d, %d)", x, y)
	}
}

func TestNodeBlocks(t *testing.T) {
	c := twoBlocks(t)
	inc := c.NodeBlocks(1)
	if len(inc) != 2 {
		t.Fatalf("NodeBlocks(1) = %v, want two incidences", inc)
	}
	if inc[0].Block != 0 || inc[0].Corner != 1 || inc[1].Block != 1 || inc[1].Corner != 0 {
		t.Errorf("NodeBlocks(1) = %v", inc)
	}
}
