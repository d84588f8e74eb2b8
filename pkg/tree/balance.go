package tree

import (
	"sort"

	"github.com/meshforge/forestmesh/pkg/octant"
)

// Balance enforces the 2:1 constraint inside the block, ignoring block
// boundaries: after it returns, any two leaves sharing a face (or, with
// corners set, an edge/corner) differ in level by at most one.
//
// The algorithm is a breadth-first ripple: every leaf is seeded into a
// hash/set and a FIFO queue; each popped octant of level >= 2 contributes
// its parent's neighbors as minimal coarse obligations, and newly inserted
// obligations are queued in turn since they impose their own constraints
// one level up. The leaf array is then rebuilt top-down so that the final
// tiling carries at least the detail of every inserted octant.
//
// Balance reports whether the leaf array changed; running it again on an
// already balanced tree changes nothing. Leaf Tag payloads do not survive
// balancing.
func (t *Tree) Balance(corners bool) bool {
	hash := octant.NewHash()
	queue := octant.NewQueue()
	for _, l := range t.leaves {
		hash.InsertUnique(l)
		queue.Push(l)
	}
	for {
		o, ok := queue.Pop()
		if !ok {
			break
		}
		for _, n := range Obligations(o, t.dim, corners, nil) {
			if n.InDomain(t.dim) && hash.InsertUnique(n) {
				queue.Push(n)
			}
		}
	}
	return t.rebuild(hash.SortedArray(octant.CompareElements))
}

// Obligations returns the coarse octants that must exist for o to satisfy
// the 2:1 constraint: the same-or-adjacent-level neighbors of o's parent
// across each face, plus edges/corners when corners is set. Octants below
// level 2 impose no obligations (their neighbors can never be more than
// one level coarser). The result may contain octants outside the block
// domain; the caller filters or transforms them. buf is reused when
// non-nil.
func Obligations(o octant.Octant, dim int, corners bool, buf []octant.Octant) []octant.Octant {
	out := buf[:0]
	if o.Level < 2 {
		return out
	}
	p := o.Parent()
	for f := 0; f < 2*dim; f++ {
		out = append(out, p.FaceNeighbor(f))
	}
	if corners {
		for c := 0; c < 1<<dim; c++ {
			out = append(out, p.CornerNeighbor(c, dim))
		}
		if dim == 3 {
			for e := 0; e < 12; e++ {
				out = append(out, p.EdgeNeighbor(e))
			}
		}
	}
	return out
}

// MergeRequired refines the tree so that its tiling carries at least the
// detail of every required octant (candidates arriving from neighboring
// blocks, already transformed into this block's frame). It reports whether
// the leaf array changed. Merging does not re-run the local ripple; the
// caller follows up with Balance when the merge reports a change.
func (t *Tree) MergeRequired(required []octant.Octant) bool {
	if len(required) == 0 {
		return false
	}
	all := make([]octant.Octant, 0, len(t.leaves)+len(required))
	all = append(all, t.leaves...)
	for _, r := range required {
		if r.Block == t.block && r.InDomain(t.dim) {
			all = append(all, r)
		}
	}
	octant.Sort(all, octant.CompareElements)
	return t.rebuild(octant.Unique(all, octant.CompareElements))
}

// rebuild replaces the leaf array with the minimal complete tiling that
// refines every octant in required: starting from the block root, an
// octant splits exactly when required holds a strictly finer octant inside
// it. required must be sorted in element order and include the current
// leaves, so rebuilding never coarsens.
func (t *Tree) rebuild(required []octant.Octant) bool {
	out := make([]octant.Octant, 0, len(t.leaves))
	var visit func(o octant.Octant)
	visit = func(o octant.Octant) {
		if o.Level < octant.MaxLevel && hasFinerInside(required, o) {
			for i := 0; i < 1<<t.dim; i++ {
				visit(o.Child(i, t.dim))
			}
			return
		}
		out = append(out, o)
	}
	visit(octant.Octant{Block: t.block})
	octant.Sort(out, octant.CompareElements)

	changed := len(out) != len(t.leaves)
	if !changed {
		for i := range out {
			if octant.CompareElements(out[i], t.leaves[i]) != 0 {
				changed = true
				break
			}
		}
	}
	t.leaves = out
	return changed
}

// hasFinerInside reports whether the sorted slice holds an octant strictly
// contained in o. Descendants of o form a contiguous run directly after o
// in element order, so only the first element past o needs checking.
func hasFinerInside(sorted []octant.Octant, o octant.Octant) bool {
	i := sort.Search(len(sorted), func(i int) bool {
		return octant.CompareElements(sorted[i], o) > 0
	})
	return i < len(sorted) && o.StrictlyContains(sorted[i])
}
