package octant

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
)

// Sort orders octs in place by the given ordering.
func Sort(octs []Octant, cmp Ordering) {
	slices.SortFunc(octs, func(a, b Octant) int { return cmp(a, b) })
}

// Unique removes adjacent duplicates (under cmp) from a sorted slice and
// returns the shortened slice. The first of each duplicate run is kept, so
// Tag payloads of later duplicates are dropped.
func Unique(octs []Octant, cmp Ordering) []Octant {
	return slices.CompactFunc(octs, func(a, b Octant) bool { return cmp(a, b) == 0 })
}

// Search locates o in a slice sorted by cmp and returns its index, or -1 if
// no element compares equal.
func Search(octs []Octant, o Octant, cmp Ordering) int {
	i := sort.Search(len(octs), func(i int) bool { return cmp(octs[i], o) >= 0 })
	if i < len(octs) && cmp(octs[i], o) == 0 {
		return i
	}
	return -1
}

// LowerBound returns the index of the first element not ordered before o.
func LowerBound(octs []Octant, o Octant, cmp Ordering) int {
	return sort.Search(len(octs), func(i int) bool { return cmp(octs[i], o) >= 0 })
}

// CoveringLeaf finds the element of a sorted, disjoint leaf array whose
// domain contains the point (x, y, z), using the element ordering. The
// second result is false when no leaf covers the point.
func CoveringLeaf(leaves []Octant, block, x, y, z int32) (Octant, bool) {
	pt := Octant{Block: block, X: x, Y: y, Z: z, Level: MaxLevel}
	// The covering leaf is the last element ordered at or before the
	// full-depth point octant: ancestors precede descendants, and leaves
	// are disjoint.
	i := sort.Search(len(leaves), func(i int) bool { return CompareElements(leaves[i], pt) > 0 })
	if i == 0 {
		return Octant{}, false
	}
	if l := leaves[i-1]; l.Contains(pt) {
		return l, true
	}
	return Octant{}, false
}

const encodedSize = 22 // 4 int32 fields + level + tag

// Encode appends the wire form of the octants to buf and returns the
// extended buffer. The encoding is a fixed-width little-endian layout used
// for cross-process exchange during balancing and repartition.
func Encode(buf []byte, octs []Octant) []byte {
	for _, o := range octs {
		var b [encodedSize]byte
		binary.LittleEndian.PutUint32(b[0:], uint32(o.Block))
		binary.LittleEndian.PutUint32(b[4:], uint32(o.X))
		binary.LittleEndian.PutUint32(b[8:], uint32(o.Y))
		binary.LittleEndian.PutUint32(b[12:], uint32(o.Z))
		binary.LittleEndian.PutUint16(b[16:], uint16(o.Level))
		binary.LittleEndian.PutUint32(b[18:], uint32(o.Tag))
		buf = append(buf, b[:]...)
	}
	return buf
}

// Decode parses a buffer produced by Encode.
func Decode(buf []byte) ([]Octant, error) {
	if len(buf)%encodedSize != 0 {
		return nil, fmt.Errorf("octant: truncated buffer of %d bytes", len(buf))
	}
	octs := make([]Octant, 0, len(buf)/encodedSize)
	for ; len(buf) > 0; buf = buf[encodedSize:] {
		octs = append(octs, Octant{
			Block: int32(binary.LittleEndian.Uint32(buf[0:])),
			X:     int32(binary.LittleEndian.Uint32(buf[4:])),
			Y:     int32(binary.LittleEndian.Uint32(buf[8:])),
			Z:     int32(binary.LittleEndian.Uint32(buf[12:])),
			Level: int16(binary.LittleEndian.Uint16(buf[16:])),
			Tag:   int32(binary.LittleEndian.Uint32(buf[18:])),
		})
	}
	return octs, nil
}
