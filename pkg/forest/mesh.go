package forest

import (
	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/octant"
)

// Mesh is one rank's finite-element view of the forest: its owned elements
// with global node ids, plus the stencils of its owned dependent nodes.
//
// Connectivity entries are independent node ids in [0, NumNodes), or
// -(dep+1) for the dependent node with global id dep. Elements follow block
// index order, then leaf element order within each block, so the traversal
// is identical whenever the forest is.
type Mesh struct {
	// Order is the element order the mesh was numbered with.
	Order int

	// NumNodes and NumDependent are global counts across all ranks.
	NumNodes     int32
	NumDependent int32

	// NumElements counts this rank's elements. Element i's nodes are
	// Conn[ElemPtr[i]:ElemPtr[i+1]], in lattice order (x fastest).
	NumElements int
	ElemPtr     []int32
	Conn        []int32

	// Dependent stencils owned by this rank: dependent node dep, for dep
	// in [DepOffset, DepOffset+len(DepPtr)-1), interpolates from
	// independent ids DepConn[DepPtr[k]:DepPtr[k+1]] with weights
	// DepWeights[DepPtr[k]:DepPtr[k+1]], where k = dep - DepOffset.
	DepOffset  int32
	DepPtr     []int32
	DepConn    []int32
	DepWeights []float64
}

// Stencil returns the interpolation stencil of one dependent node. ok is
// false when the node is owned by another rank.
func (m *Mesh) Stencil(dep int32) (ids []int32, weights []float64, ok bool) {
	k := dep - m.DepOffset
	if k < 0 || int(k) >= len(m.DepPtr)-1 {
		return nil, nil, false
	}
	return m.DepConn[m.DepPtr[k]:m.DepPtr[k+1]], m.DepWeights[m.DepPtr[k]:m.DepPtr[k+1]], true
}

// GetMesh assembles this rank's mesh from the current numbering. CreateNodes
// must have run since the last Balance or Repartition.
func (f *Forest) GetMesh() (*Mesh, error) {
	if f.num == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "GetMesh requires CreateNodes to run first")
	}
	num := f.num
	order := num.order

	m := &Mesh{
		Order:        order,
		NumNodes:     num.totalNodes,
		NumDependent: num.totalDeps,
		DepOffset:    num.depOffset,
	}
	m.ElemPtr = append(m.ElemPtr, 0)
	for _, b := range f.OwnedBlocks() {
		bn := num.blocks[b]
		for _, l := range f.trees[b].Leaves() {
			step := l.SideLength() / int32(order-1)
			for iy := 0; iy < order; iy++ {
				for ix := 0; ix < order; ix++ {
					pos := octant.Octant{Block: b, X: l.X + int32(ix)*step, Y: l.Y + int32(iy)*step}
					j := octant.Search(bn.nodes, pos, octant.CompareNodes)
					if j < 0 {
						return nil, errors.New(errors.ErrCodeInternal,
							"block %d element node at (%d,%d) missing from node array", b, pos.X, pos.Y)
					}
					m.Conn = append(m.Conn, bn.ids[j])
				}
			}
			m.ElemPtr = append(m.ElemPtr, int32(len(m.Conn)))
		}
	}
	m.NumElements = len(m.ElemPtr) - 1

	m.DepPtr = append(m.DepPtr, 0)
	for _, entries := range num.stencils {
		for _, e := range entries {
			m.DepConn = append(m.DepConn, e.Index)
			m.DepWeights = append(m.DepWeights, e.Weight)
		}
		m.DepPtr = append(m.DepPtr, int32(len(m.DepConn)))
	}
	return m, nil
}
