package octant

import (
	"slices"
	"testing"
)

func TestSideLength(t *testing.T) {
	tests := []struct {
		level int16
		want  int32
	}{
		{0, Side},
		{1, Side / 2},
		{MaxLevel, 1},
	}
	for _, tt := range tests {
		o := Octant{Level: tt.level}
		if got := o.SideLength(); got != tt.want {
			t.Errorf("SideLength(level=%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestCompareElements(t *testing.T) {
	h1 := Side / 2
	h2 := Side / 4
	tests := []struct {
		name string
		a, b Octant
		want int // sign only
	}{
		{"Equal", Octant{X: h2, Y: h2, Level: 2}, Octant{X: h2, Y: h2, Level: 2}, 0},
		{"TagIgnored", Octant{X: h2, Level: 2, Tag: 7}, Octant{X: h2, Level: 2, Tag: -1}, 0},
		{"AncestorBeforeDescendant", Octant{Level: 0}, Octant{Level: 1}, -1},
		{"BlockMajor", Octant{Block: 0, X: h1, Y: h1}, Octant{Block: 1}, -1},
		// x is the most significant axis in the discriminator, so the
		// +y sibling precedes the +x sibling.
		{"MortonYBeforeX", Octant{Y: h1, Level: 1}, Octant{X: h1, Level: 1}, -1},
		{"MortonDiagonalLast", Octant{X: h1, Level: 1}, Octant{X: h1, Y: h1, Level: 1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareElements(tt.a, tt.b)
			if sign(got) != tt.want {
				t.Errorf("CompareElements = %d, want sign %d", got, tt.want)
			}
			if sign(CompareElements(tt.b, tt.a)) != -tt.want {
				t.Error("CompareElements is not antisymmetric")
			}
		})
	}
}

func TestCompareElementsSortsSubtreeContiguously(t *testing.T) {
	// All descendants of a quadrant must form a contiguous run directly
	// after it in element order.
	root := Octant{Level: 0}
	var octs []Octant
	for i := 0; i < 4; i++ {
		c := root.Child(i, 2)
		octs = append(octs, c)
		for j := 0; j < 4; j++ {
			octs = append(octs, c.Child(j, 2))
		}
	}
	Sort(octs, CompareElements)
	for i, o := range octs {
		if o.Level != 1 {
			continue
		}
		for j := i + 1; j <= i+4; j++ {
			if !o.StrictlyContains(octs[j]) {
				t.Fatalf("descendants of %+v not contiguous at index %d", o, j)
			}
		}
	}
}

func TestCompareNodesIgnoresLevel(t *testing.T) {
	a := Octant{X: Side / 2, Y: Side / 2, Level: 1}
	b := Octant{X: Side / 2, Y: Side / 2, Level: 4}
	if CompareNodes(a, b) != 0 {
		t.Error("nodes at the same point must compare equal regardless of level")
	}
	if CompareElements(a, b) == 0 {
		t.Error("elements at the same point with different levels must stay distinct")
	}
}

func TestParentChild(t *testing.T) {
	o := Octant{Block: 3, X: Side / 2, Y: Side / 4, Level: 2}
	for i := 0; i < 4; i++ {
		c := o.Child(i, 2)
		if c.Level != o.Level+1 {
			t.Fatalf("Child level = %d, want %d", c.Level, o.Level+1)
		}
		if p := c.Parent(); p != (Octant{Block: 3, X: o.X, Y: o.Y, Level: o.Level}) {
			t.Errorf("Parent(Child(%d)) = %+v, want %+v", i, p, o)
		}
		if !o.StrictlyContains(c) {
			t.Errorf("octant does not contain its child %d", i)
		}
	}
	if r := (Octant{Level: 0}); r.Parent() != r {
		t.Error("Parent of a root octant must be the root itself")
	}
}

func TestFaceNeighbor(t *testing.T) {
	h := Side / 4
	o := Octant{X: h, Y: h, Level: 2}
	tests := []struct {
		face   int
		wantX  int32
		wantY  int32
		inside bool
	}{
		{0, 0, h, true},
		{1, 2 * h, h, true},
		{2, h, 0, true},
		{3, h, 2 * h, true},
	}
	for _, tt := range tests {
		n := o.FaceNeighbor(tt.face)
		if n.X != tt.wantX || n.Y != tt.wantY || n.Level != o.Level {
			t.Errorf("FaceNeighbor(%d) = (%d,%d), want (%d,%d)", tt.face, n.X, n.Y, tt.wantX, tt.wantY)
		}
		if n.InDomain(2) != tt.inside {
			t.Errorf("FaceNeighbor(%d).InDomain = %v, want %v", tt.face, n.InDomain(2), tt.inside)
		}
	}

	corner := Octant{Level: 2} // anchored at the origin
	if corner.FaceNeighbor(0).InDomain(2) {
		t.Error("neighbor across the -x block boundary must be out of domain")
	}
}

func TestCornerNeighbor(t *testing.T) {
	h := Side / 4
	o := Octant{X: h, Y: h, Level: 2}
	n := o.CornerNeighbor(3, 2)
	if n.X != 2*h || n.Y != 2*h {
		t.Errorf("CornerNeighbor(3) = (%d,%d), want (%d,%d)", n.X, n.Y, 2*h, 2*h)
	}
	n = o.CornerNeighbor(0, 2)
	if n.X != 0 || n.Y != 0 {
		t.Errorf("CornerNeighbor(0) = (%d,%d), want (0,0)", n.X, n.Y)
	}
}

func TestHashDistinguishesLevels(t *testing.T) {
	h := NewHash()
	a := Octant{X: 0, Y: 0, Level: 1}
	b := Octant{X: 0, Y: 0, Level: 2}
	if !h.InsertUnique(a) || !h.InsertUnique(b) {
		t.Fatal("octants differing only in level must both insert")
	}
	if h.InsertUnique(a) {
		t.Error("duplicate insert must report false")
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
	arr := h.SortedArray(CompareElements)
	if len(arr) != 2 || arr[0] != a || arr[1] != b {
		t.Errorf("SortedArray = %+v", arr)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue must report empty")
	}
	for i := int32(0); i < 5; i++ {
		q.Push(Octant{Tag: i})
	}
	for i := int32(0); i < 5; i++ {
		o, ok := q.Pop()
		if !ok || o.Tag != i {
			t.Fatalf("Pop %d = (%+v, %v), want tag %d", i, o, ok, i)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", q.Len())
	}
}

func TestCoveringLeaf(t *testing.T) {
	// Root split once, child 0 split again: 4 fine + 3 coarse leaves.
	root := Octant{Level: 0}
	var leaves []Octant
	for i := 1; i < 4; i++ {
		leaves = append(leaves, root.Child(i, 2))
	}
	for i := 0; i < 4; i++ {
		leaves = append(leaves, root.Child(0, 2).Child(i, 2))
	}
	Sort(leaves, CompareElements)

	h2 := Side / 4
	tests := []struct {
		x, y      int32
		wantLevel int16
	}{
		{0, 0, 2},
		{h2, h2, 2},
		{3 * h2, 0, 1},
		{h2, 3 * h2, 1},
	}
	for _, tt := range tests {
		l, ok := CoveringLeaf(leaves, 0, tt.x, tt.y, 0)
		if !ok {
			t.Fatalf("CoveringLeaf(%d,%d): no cover", tt.x, tt.y)
		}
		if l.Level != tt.wantLevel {
			t.Errorf("CoveringLeaf(%d,%d).Level = %d, want %d", tt.x, tt.y, l.Level, tt.wantLevel)
		}
	}
	if _, ok := CoveringLeaf(leaves[:2], 0, 0, 0, 0); ok {
		t.Error("point outside a partial array must report no cover")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []Octant{
		{Block: 2, X: Side / 2, Y: Side / 4, Level: 3, Tag: -5},
		{Block: 0, X: 0, Y: 0, Z: 0, Level: 0, Tag: 0},
	}
	out, err := Decode(Encode(nil, in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !slices.Equal(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("Decode of a truncated buffer must fail")
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
