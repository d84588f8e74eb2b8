package octant

import "slices"

// hashKey is the identity of an octant inside a Hash: everything except the
// Tag payload. Two octants with equal anchors but different levels are
// distinct entries.
type hashKey struct {
	block   int32
	x, y, z int32
	level   int16
}

// Hash is a uniquifying set of octants keyed by (block, anchor, level).
// It is a transient scratch structure rebuilt per balancing pass; it has no
// ownership or cross-process semantics.
type Hash struct {
	seen  map[hashKey]struct{}
	items []Octant
}

// NewHash creates an empty octant set.
func NewHash() *Hash {
	return &Hash{seen: make(map[hashKey]struct{})}
}

// InsertUnique adds o to the set and reports whether it was newly inserted.
// The Tag of the first insertion wins; later duplicates are dropped whole.
func (h *Hash) InsertUnique(o Octant) bool {
	k := hashKey{block: o.Block, x: o.X, y: o.Y, z: o.Z, level: o.Level}
	if _, ok := h.seen[k]; ok {
		return false
	}
	h.seen[k] = struct{}{}
	h.items = append(h.items, o)
	return true
}

// Contains reports whether an octant with the same block, anchor and level
// is already in the set.
func (h *Hash) Contains(o Octant) bool {
	_, ok := h.seen[hashKey{block: o.Block, x: o.X, y: o.Y, z: o.Z, level: o.Level}]
	return ok
}

// Len returns the number of distinct octants inserted so far.
func (h *Hash) Len() int { return len(h.items) }

// SortedArray returns the set contents sorted by the given ordering.
// The returned slice is freshly allocated; the set is left unchanged.
func (h *Hash) SortedArray(cmp Ordering) []Octant {
	out := slices.Clone(h.items)
	slices.SortFunc(out, func(a, b Octant) int { return cmp(a, b) })
	return out
}

// Queue is a FIFO worklist of octants awaiting processing. Breadth-first
// order keeps balance propagation independent of insertion order.
type Queue struct {
	items []Octant
	head  int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Push appends an octant to the back of the queue.
func (q *Queue) Push(o Octant) { q.items = append(q.items, o) }

// Pop removes and returns the octant at the front of the queue.
// The second result is false when the queue is empty.
func (q *Queue) Pop() (Octant, bool) {
	if q.head >= len(q.items) {
		return Octant{}, false
	}
	o := q.items[q.head]
	q.head++
	// Reclaim the consumed prefix once it dominates the backing slice.
	if q.head > 1024 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return o, true
}

// Len returns the number of octants waiting in the queue.
func (q *Queue) Len() int { return len(q.items) - q.head }
