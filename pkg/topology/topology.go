// Package topology describes the static connectivity of the multi-block
// domain: which blocks share which corners and edges, and how a coordinate
// on one block's frame maps onto a neighboring block's frame.
//
// The graph is built once from the per-block corner node ids and is
// immutable afterwards. It is replicated identically on every process, so
// all ranks derive the same edge numbering, the same incidence lists and
// the same orientation flags without communication.
//
// # Local numbering
//
// Block corners are numbered by coordinate bits: corner c sits at
// (x, y) = (c&1, (c>>1)&1) in the block's unit frame. Block edges follow
// the face numbering of [octant.Octant.FaceNeighbor]: edge 0 is the x=0
// side, 1 the x=max side, 2 the y=0 side and 3 the y=max side. The
// coordinate that varies along an edge increases from the edge's low corner
// to its high corner.
package topology

import (
	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/octant"
)

// edgeCorners maps a local edge to its (low, high) local corners.
var edgeCorners = [4][2]int{
	{0, 2}, // x = 0, along y
	{1, 3}, // x = max, along y
	{0, 1}, // y = 0, along x
	{2, 3}, // y = max, along x
}

// EdgeIncidence records that a block touches a shared edge with one of its
// local edges.
type EdgeIncidence struct {
	Block int32
	Edge  int
}

// CornerIncidence records that a block touches a shared node with one of
// its local corners.
type CornerIncidence struct {
	Block  int32
	Corner int
}

// Connectivity is the immutable block connectivity graph.
type Connectivity struct {
	numNodes   int
	blockConn  [][4]int32        // block -> corner node ids
	blockEdges [][4]int32        // block -> edge ids, indexed by local edge
	edgeBlocks [][]EdgeIncidence // edge id -> incident blocks
	nodeBlocks [][]CornerIncidence
}

// New validates the per-block corner node ids and derives the edge list and
// the node and edge incidence maps. Blocks are quadrilateral: exactly four
// corner node ids each, in local corner order.
//
// Construction fails with a CONNECTIVITY_INVALID error for out-of-range or
// repeated corner ids, nodes referenced by no block, or edges shared by
// more than two blocks (a non-manifold configuration).
func New(numNodes int, blockConn [][4]int32) (*Connectivity, error) {
	if numNodes <= 0 {
		return nil, errors.New(errors.ErrCodeConnectivityInvalid, "node count %d must be positive", numNodes)
	}
	if len(blockConn) == 0 {
		return nil, errors.New(errors.ErrCodeConnectivityInvalid, "connectivity has no blocks")
	}

	c := &Connectivity{
		numNodes:   numNodes,
		blockConn:  blockConn,
		blockEdges: make([][4]int32, len(blockConn)),
		nodeBlocks: make([][]CornerIncidence, numNodes),
	}

	used := make([]bool, numNodes)
	for b, conn := range blockConn {
		for i, n := range conn {
			if n < 0 || int(n) >= numNodes {
				return nil, errors.New(errors.ErrCodeConnectivityInvalid,
					"block %d corner %d references node %d outside [0, %d)", b, i, n, numNodes)
			}
			for j := 0; j < i; j++ {
				if conn[j] == n {
					return nil, errors.New(errors.ErrCodeConnectivityInvalid,
						"block %d repeats node %d at corners %d and %d", b, n, j, i)
				}
			}
			used[n] = true
			c.nodeBlocks[n] = append(c.nodeBlocks[n], CornerIncidence{Block: int32(b), Corner: i})
		}
	}
	for n, ok := range used {
		if !ok {
			return nil, errors.New(errors.ErrCodeConnectivityInvalid, "node %d is referenced by no block", n)
		}
	}

	// Assign edge ids in deterministic first-occurrence order: blocks
	// ascending, local edges 0..3.
	type nodePair struct{ lo, hi int32 }
	ids := make(map[nodePair]int32)
	for b, conn := range blockConn {
		for e := 0; e < 4; e++ {
			a, z := conn[edgeCorners[e][0]], conn[edgeCorners[e][1]]
			key := nodePair{lo: min(a, z), hi: max(a, z)}
			id, ok := ids[key]
			if !ok {
				id = int32(len(c.edgeBlocks))
				ids[key] = id
				c.edgeBlocks = append(c.edgeBlocks, nil)
			}
			c.blockEdges[b][e] = id
			c.edgeBlocks[id] = append(c.edgeBlocks[id], EdgeIncidence{Block: int32(b), Edge: e})
			if len(c.edgeBlocks[id]) > 2 {
				return nil, errors.New(errors.ErrCodeConnectivityInvalid,
					"edge between nodes %d and %d is shared by more than two blocks", key.lo, key.hi)
			}
		}
	}
	return c, nil
}

// NumNodes returns the number of corner nodes in the block graph.
func (c *Connectivity) NumNodes() int { return c.numNodes }

// NumBlocks returns the number of blocks (trees) in the domain.
func (c *Connectivity) NumBlocks() int { return len(c.blockConn) }

// NumEdges returns the number of distinct block edges.
func (c *Connectivity) NumEdges() int { return len(c.edgeBlocks) }

// BlockCorner returns the global node id at local corner corner of block b.
func (c *Connectivity) BlockCorner(b int32, corner int) int32 {
	return c.blockConn[b][corner]
}

// BlockEdge returns the global edge id of local edge e of block b.
func (c *Connectivity) BlockEdge(b int32, e int) int32 {
	return c.blockEdges[b][e]
}

// NodeBlocks returns every (block, local corner) incidence of node n.
// The returned slice is owned by the Connectivity and must not be modified.
func (c *Connectivity) NodeBlocks(n int32) []CornerIncidence {
	return c.nodeBlocks[n]
}

// EdgeNeighbor returns the block on the other side of local edge e of block
// b, its local edge, and whether the along-edge coordinate runs in the
// opposite direction there. ok is false for a domain boundary edge.
func (c *Connectivity) EdgeNeighbor(b int32, e int) (nb int32, ne int, reversed, ok bool) {
	for _, inc := range c.edgeBlocks[c.blockEdges[b][e]] {
		if inc.Block == b && inc.Edge == e {
			continue
		}
		nb, ne = inc.Block, inc.Edge
		lo := c.blockConn[b][edgeCorners[e][0]]
		nlo := c.blockConn[nb][edgeCorners[ne][0]]
		return nb, ne, lo != nlo, true
	}
	return 0, 0, false, false
}

// TransformAcrossEdge re-expresses octant o, which lies just outside block
// b's domain across local edge e, in the frame of the neighboring block.
// ok is false when the edge has no neighbor.
func (c *Connectivity) TransformAcrossEdge(b int32, e int, o octant.Octant) (octant.Octant, bool) {
	nb, ne, reversed, ok := c.EdgeNeighbor(b, e)
	if !ok {
		return octant.Octant{}, false
	}
	h := o.SideLength()
	u := o.Y
	if e >= 2 {
		u = o.X
	}
	if reversed {
		u = octant.Side - u - h
	}
	t := octant.Octant{Block: nb, Level: o.Level}
	switch ne {
	case 0:
		t.X, t.Y = 0, u
	case 1:
		t.X, t.Y = octant.Side-h, u
	case 2:
		t.X, t.Y = u, 0
	case 3:
		t.X, t.Y = u, octant.Side-h
	}
	return t, true
}

// TransformPointAcrossEdge maps the along-edge coordinate u of a point on
// local edge e of block b into the neighbor's along-edge coordinate.
// Unlike octant anchors, points transform without a side-length offset.
func (c *Connectivity) TransformPointAcrossEdge(b int32, e int, u int32) (nb int32, ne int, nu int32, ok bool) {
	nb, ne, reversed, ok := c.EdgeNeighbor(b, e)
	if !ok {
		return 0, 0, 0, false
	}
	if reversed {
		u = octant.Side - u
	}
	return nb, ne, u, true
}

// CornerOctant returns the octant of the given level hugging local corner
// corner of block b.
func CornerOctant(b int32, corner int, level int16) octant.Octant {
	h := int32(1) << (octant.MaxLevel - int32(level))
	o := octant.Octant{Block: b, Level: level}
	if corner&1 != 0 {
		o.X = octant.Side - h
	}
	if corner&2 != 0 {
		o.Y = octant.Side - h
	}
	return o
}

// CornerPoint returns the coordinates of local corner corner of a block.
func CornerPoint(corner int) (x, y int32) {
	if corner&1 != 0 {
		x = octant.Side
	}
	if corner&2 != 0 {
		y = octant.Side
	}
	return x, y
}

// EdgePoint returns the coordinates of the point at along-edge coordinate u
// on local edge e of a block.
func EdgePoint(e int, u int32) (x, y int32) {
	switch e {
	case 0:
		return 0, u
	case 1:
		return octant.Side, u
	case 2:
		return u, 0
	default:
		return u, octant.Side
	}
}
