// Package octant provides the spatial key type shared by every layer of the
// forest: a cell in a hierarchical subdivision of a block, identified by its
// integer anchor coordinates and refinement level.
//
// All coordinates live on a fixed integer lattice of side 1<<MaxLevel. An
// octant at level l covers a cube (square in 2D) of side 1<<(MaxLevel-l)
// anchored at its lower corner. Quadrants are represented as octants whose Z
// coordinate is always zero; the containing tree or forest carries the
// dimension.
//
// The package defines two total orderings:
//
//   - CompareElements orders by block, then by the Morton (space-filling
//     curve) position of the anchor, then by level. Ancestors sort before
//     their descendants, and all descendants of an octant form a contiguous
//     run directly after it. This is the ordering used for leaf arrays,
//     balancing and repartition cuts.
//   - CompareNodes orders by block and anchor only. Two node octants at the
//     same point are the same mesh node regardless of the level they were
//     generated at.
//
// Both orderings are deterministic functions of the octant fields alone, so
// every process agrees on them without negotiation.
package octant

// MaxLevel is the maximum refinement depth. Anchor coordinates are in
// [0, 1<<MaxLevel) and levels in [0, MaxLevel].
const MaxLevel = 30

// Side is the extent of a block's coordinate domain along each axis.
const Side = int32(1) << MaxLevel

// Octant identifies a cell within one block of the forest.
//
// Tag is a general-purpose payload (node id, ownership marker) that never
// participates in ordering or identity.
type Octant struct {
	Block   int32 // owning block (tree) index
	X, Y, Z int32 // anchor coordinates, in [0, Side)
	Level   int16 // refinement depth, in [0, MaxLevel]
	Tag     int32 // caller payload, ignored by comparisons
}

// Ordering is a strict total order over octants, returning a negative,
// zero or positive value like [strings.Compare]. The hash, sorted arrays
// and search helpers are all parameterized by an Ordering so that element
// and node semantics share one implementation.
type Ordering func(a, b Octant) int

// SideLength returns the edge length of the octant at its level.
func (o Octant) SideLength() int32 {
	return int32(1) << (MaxLevel - int32(o.Level))
}

// CompareElements orders octants by block, Morton position and level.
//
// The Morton comparison uses the XOR most-significant-bit discriminator:
// the coordinate axis holding the highest differing bit decides. Octants
// with identical anchors are ordered coarse before fine.
func CompareElements(a, b Octant) int {
	if a.Block != b.Block {
		return int(a.Block) - int(b.Block)
	}
	xxor := uint32(a.X ^ b.X)
	yxor := uint32(a.Y ^ b.Y)
	zxor := uint32(a.Z ^ b.Z)
	sor := xxor | yxor | zxor
	if sor == 0 {
		return int(a.Level) - int(b.Level)
	}
	if xxor > (sor ^ xxor) {
		return int(a.X) - int(b.X)
	}
	if yxor > (sor ^ yxor) {
		return int(a.Y) - int(b.Y)
	}
	return int(a.Z) - int(b.Z)
}

// CompareNodes orders octants by block and anchor position only, so node
// octants generated at different levels collapse onto the same point.
func CompareNodes(a, b Octant) int {
	if a.Block != b.Block {
		return int(a.Block) - int(b.Block)
	}
	xxor := uint32(a.X ^ b.X)
	yxor := uint32(a.Y ^ b.Y)
	zxor := uint32(a.Z ^ b.Z)
	sor := xxor | yxor | zxor
	if sor == 0 {
		return 0
	}
	if xxor > (sor ^ xxor) {
		return int(a.X) - int(b.X)
	}
	if yxor > (sor ^ yxor) {
		return int(a.Y) - int(b.Y)
	}
	return int(a.Z) - int(b.Z)
}

// Parent returns the ancestor one level coarser. The Tag is cleared.
// Calling Parent on a level-0 octant returns the octant itself.
func (o Octant) Parent() Octant {
	if o.Level == 0 {
		o.Tag = 0
		return o
	}
	mask := ^(2*o.SideLength() - 1)
	return Octant{
		Block: o.Block,
		X:     o.X & mask,
		Y:     o.Y & mask,
		Z:     o.Z & mask,
		Level: o.Level - 1,
	}
}

// Child returns the child octant with index i. The low dim bits of i select
// the upper half along x, y and z respectively. Child index order is not
// element order; sort after generating children when order matters.
func (o Octant) Child(i, dim int) Octant {
	h := o.SideLength() / 2
	c := Octant{
		Block: o.Block,
		X:     o.X,
		Y:     o.Y,
		Z:     o.Z,
		Level: o.Level + 1,
	}
	if i&1 != 0 {
		c.X += h
	}
	if i&2 != 0 {
		c.Y += h
	}
	if dim == 3 && i&4 != 0 {
		c.Z += h
	}
	return c
}

// FaceNeighbor returns the same-level neighbor across face f. Faces are
// numbered -x, +x, -y, +y, -z, +z. The result may fall outside the block
// domain; the caller decides whether to discard or transform it.
func (o Octant) FaceNeighbor(f int) Octant {
	h := o.SideLength()
	n := Octant{Block: o.Block, X: o.X, Y: o.Y, Z: o.Z, Level: o.Level}
	switch f {
	case 0:
		n.X -= h
	case 1:
		n.X += h
	case 2:
		n.Y -= h
	case 3:
		n.Y += h
	case 4:
		n.Z -= h
	case 5:
		n.Z += h
	}
	return n
}

// CornerNeighbor returns the same-level neighbor diagonally across corner c.
// Corner bits select the positive direction along x, y and (for dim 3) z.
func (o Octant) CornerNeighbor(c, dim int) Octant {
	h := o.SideLength()
	n := Octant{Block: o.Block, X: o.X, Y: o.Y, Z: o.Z, Level: o.Level}
	if c&1 != 0 {
		n.X += h
	} else {
		n.X -= h
	}
	if c&2 != 0 {
		n.Y += h
	} else {
		n.Y -= h
	}
	if dim == 3 {
		if c&4 != 0 {
			n.Z += h
		} else {
			n.Z -= h
		}
	}
	return n
}

// EdgeNeighbor returns the same-level neighbor across edge e of a 3D octant.
// Edges 0-3 run along x, 4-7 along y and 8-11 along z; the low bits of the
// index within each group select the positive direction on the two
// transverse axes.
func (o Octant) EdgeNeighbor(e int) Octant {
	h := o.SideLength()
	n := Octant{Block: o.Block, X: o.X, Y: o.Y, Z: o.Z, Level: o.Level}
	step := func(positive bool) int32 {
		if positive {
			return h
		}
		return -h
	}
	switch {
	case e < 4: // transverse y, z
		n.Y += step(e&1 != 0)
		n.Z += step(e&2 != 0)
	case e < 8: // transverse x, z
		n.X += step(e&1 != 0)
		n.Z += step(e&2 != 0)
	default: // transverse x, y
		n.X += step(e&1 != 0)
		n.Y += step(e&2 != 0)
	}
	return n
}

// InDomain reports whether the octant's extent lies inside the block
// coordinate domain for the given dimension.
func (o Octant) InDomain(dim int) bool {
	h := o.SideLength()
	if o.X < 0 || o.X+h > Side || o.Y < 0 || o.Y+h > Side {
		return false
	}
	if dim == 3 && (o.Z < 0 || o.Z+h > Side) {
		return false
	}
	return true
}

// Contains reports whether o's domain contains the anchor of p. Octants in
// different blocks never contain one another.
func (o Octant) Contains(p Octant) bool {
	if o.Block != p.Block {
		return false
	}
	h := o.SideLength()
	if p.X < o.X || p.X >= o.X+h || p.Y < o.Y || p.Y >= o.Y+h {
		return false
	}
	return p.Z >= o.Z && p.Z < o.Z+h
}

// StrictlyContains reports whether o contains p and p is finer than o.
func (o Octant) StrictlyContains(p Octant) bool {
	return p.Level > o.Level && o.Contains(p)
}
