// Package tree implements the per-block octree/quadtree of the forest.
//
// A Tree owns one sorted, unique array of leaf octants whose union tiles
// the block's coordinate domain exactly, and, after node creation, one
// sorted array of node octants. A tree is exclusively owned by one process
// at a time; repartition transfers trees wholesale and is the only
// operation that moves that ownership.
//
// Dimension is a per-tree property: quadtrees use dim 2 (leaf Z stays
// zero), octrees dim 3. All coordinates follow the conventions of
// [octant.Octant].
package tree

import (
	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/octant"
)

// Tree is a single-block tree holding the leaf (element) octants of one
// block and, after CreateNodes, the node octants.
type Tree struct {
	block  int32
	dim    int
	leaves []octant.Octant
	nodes  []octant.Octant
}

// NewUniform creates a tree uniformly refined to the given level.
// The level must lie in [0, octant.MaxLevel]; dim must be 2 or 3.
func NewUniform(block int32, dim, level int) (*Tree, error) {
	if dim != 2 && dim != 3 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "tree dimension %d is not 2 or 3", dim)
	}
	if err := errors.ValidateLevel(level, octant.MaxLevel); err != nil {
		return nil, err
	}

	h := int32(1) << (octant.MaxLevel - int32(level))
	n := int32(1) << int32(level)
	zmax := int32(1)
	if dim == 3 {
		zmax = n
	}
	leaves := make([]octant.Octant, 0, int(n)*int(n)*int(zmax))
	for iz := int32(0); iz < zmax; iz++ {
		for iy := int32(0); iy < n; iy++ {
			for ix := int32(0); ix < n; ix++ {
				leaves = append(leaves, octant.Octant{
					Block: block, X: ix * h, Y: iy * h, Z: iz * h, Level: int16(level),
				})
			}
		}
	}
	octant.Sort(leaves, octant.CompareElements)
	return &Tree{block: block, dim: dim, leaves: leaves}, nil
}

// NewFromLeaves creates a tree from an existing leaf array, taking
// ownership of the slice. Leaves are sorted; the caller guarantees they
// are disjoint and tile the block (this holds for any array produced by
// another Tree, which is the only intended source).
func NewFromLeaves(block int32, dim int, leaves []octant.Octant) *Tree {
	octant.Sort(leaves, octant.CompareElements)
	return &Tree{block: block, dim: dim, leaves: leaves}
}

// Block returns the index of the block this tree subdivides.
func (t *Tree) Block() int32 { return t.block }

// Dim returns the spatial dimension (2 or 3).
func (t *Tree) Dim() int { return t.dim }

// NumLeaves returns the number of leaf octants.
func (t *Tree) NumLeaves() int { return len(t.leaves) }

// Leaves returns the sorted leaf array. The slice is owned by the tree and
// must not be modified.
func (t *Tree) Leaves() []octant.Octant { return t.leaves }

// Nodes returns the sorted node array built by CreateNodes. The slice is
// owned by the tree and must not be modified.
func (t *Tree) Nodes() []octant.Octant { return t.nodes }

// CoveringLeaf returns the leaf whose domain contains the given point, or
// false if the point is outside the block domain.
func (t *Tree) CoveringLeaf(x, y, z int32) (octant.Octant, bool) {
	return octant.CoveringLeaf(t.leaves, t.block, x, y, z)
}

// CreateNodes enumerates the node octants of every leaf on the lattice of
// the requested element order (2 = corners only, 3 = corners, edge
// midpoints and center) and stores the deduplicated, node-ordered result.
// Nodes shared by adjacent leaves collapse to a single entry.
func (t *Tree) CreateNodes(order int) error {
	if err := errors.ValidateMeshOrder(order); err != nil {
		return err
	}
	hash := octant.NewHash()
	for _, leaf := range t.leaves {
		if order > 2 && leaf.Level == octant.MaxLevel {
			return errors.New(errors.ErrCodeRefinementBounds,
				"block %d leaf at (%d,%d,%d) is at maximum depth; order %d nodes need one spare level",
				t.block, leaf.X, leaf.Y, leaf.Z, order)
		}
		step := leaf.SideLength() / int32(order-1)
		zcount := 1
		if t.dim == 3 {
			zcount = order
		}
		for iz := 0; iz < zcount; iz++ {
			for iy := 0; iy < order; iy++ {
				for ix := 0; ix < order; ix++ {
					hash.InsertUnique(octant.Octant{
						Block: t.block,
						X:     leaf.X + int32(ix)*step,
						Y:     leaf.Y + int32(iy)*step,
						Z:     leaf.Z + int32(iz)*step,
						Level: leaf.Level,
					})
				}
			}
		}
	}
	nodes := hash.SortedArray(octant.CompareNodes)
	t.nodes = octant.Unique(nodes, octant.CompareNodes)
	return nil
}

// Coarsen returns a new tree one refinement level coarser: every complete
// group of siblings collapses into its parent, leaves without all their
// siblings present are kept. The receiver is left untouched.
func (t *Tree) Coarsen() *Tree {
	group := 1 << t.dim
	out := make([]octant.Octant, 0, len(t.leaves)/group+1)
	for i := 0; i < len(t.leaves); {
		if i+group <= len(t.leaves) && siblingRun(t.leaves[i:i+group]) {
			out = append(out, t.leaves[i].Parent())
			i += group
			continue
		}
		out = append(out, t.leaves[i])
		i++
	}
	octant.Sort(out, octant.CompareElements)
	return &Tree{block: t.block, dim: t.dim, leaves: out}
}

// siblingRun reports whether the given consecutive leaves are exactly the
// full child set of one parent.
func siblingRun(leaves []octant.Octant) bool {
	first := leaves[0]
	if first.Level == 0 {
		return false
	}
	p := first.Parent()
	for _, l := range leaves[1:] {
		if l.Level != first.Level || l.Parent() != p {
			return false
		}
	}
	return true
}
