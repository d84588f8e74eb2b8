package forest

import (
	"context"
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/observability"
	"github.com/meshforge/forestmesh/pkg/octant"
	"github.com/meshforge/forestmesh/pkg/stencil"
	"github.com/meshforge/forestmesh/pkg/topology"
)

// Sentinels distinguishing unresolved id slots during numbering. Real ids
// are non-negative; dependent ids are stored as -(dep+1) and never reach
// these values.
const (
	idUnresolved = math.MinInt32
	idDependent  = math.MinInt32 + 1
)

// blockNodes holds one owned block's node array and, after numbering, the
// global id of every node: the independent id, or -(dep+1) for a dependent
// node with global dependent id dep.
type blockNodes struct {
	nodes []octant.Octant
	ids   []int32
}

// depSpec describes one dependent (hanging) node before numbering: its
// position and the positions and weights of the coarse-edge nodes it
// interpolates from, all in the discovering block's frame.
type depSpec struct {
	pos     octant.Octant
	targets []octant.Octant
	weights []float64
}

// numbering is the result of CreateNodes on one rank.
type numbering struct {
	order      int
	nodeOffset int32
	depOffset  int32
	ownedNodes int32
	ownedDeps  int32
	totalNodes int32
	totalDeps  int32
	blocks     map[int32]*blockNodes
	stencils   [][]stencil.IndexWeight // indexed by dep id - depOffset
}

// CreateNodes enumerates the mesh nodes of every owned tree, classifies
// hanging nodes on coarse-fine interfaces (block boundaries included),
// assigns contiguous global ids — independent nodes in [0, N) across all
// ranks, dependent nodes separately in [0, D) — and builds each dependent
// node's interpolation stencil.
//
// The forest must be 2:1 balanced first; CreateNodes fails otherwise.
// Independent nodes shared across block boundaries are unified through the
// connectivity and owned by the lowest incident block; non-owning ranks
// fetch the assigned ids in one request/reply exchange.
func (f *Forest) CreateNodes(ctx context.Context) error {
	if err := f.requireTrees("CreateNodes"); err != nil {
		return err
	}
	start := time.Now()
	rank := f.comm.Rank()
	blocks := f.OwnedBlocks()

	for _, b := range blocks {
		if err := f.trees[b].CreateNodes(f.opts.MeshOrder); err != nil {
			return err
		}
	}

	ghosts, err := f.exchangeEdgeGhosts(ctx)
	if err != nil {
		return err
	}

	num := &numbering{order: f.opts.MeshOrder, blocks: make(map[int32]*blockNodes, len(blocks))}
	deps := make(map[int32][]depSpec, len(blocks))
	for _, b := range blocks {
		nodes := f.trees[b].Nodes()
		bn := &blockNodes{nodes: nodes, ids: make([]int32, len(nodes))}
		for i := range bn.ids {
			bn.ids[i] = idUnresolved
		}
		num.blocks[b] = bn

		specs, err := f.classifyDependents(b, ghosts[b])
		if err != nil {
			return err
		}
		for _, s := range specs {
			i := octant.Search(bn.nodes, s.pos, octant.CompareNodes)
			if i < 0 {
				return errors.New(errors.ErrCodeInternal,
					"rank %d: dependent node at (%d,%d) missing from block %d node array",
					rank, s.pos.X, s.pos.Y, b)
			}
			bn.ids[i] = idDependent
		}
		deps[b] = specs
	}

	// First numbering pass: assign block-local sequence numbers to the
	// independent nodes canonically anchored in this rank's blocks, and
	// collect the lookups everything else needs.
	type nodeRef struct {
		block int32
		idx   int
	}
	var ownedCount int32
	requests := make(map[int][]octant.Octant)
	requestRefs := make(map[int][]nodeRef)
	type localRef struct {
		ref    nodeRef
		cblock int32
		cx, cy int32
	}
	var localRefs []localRef
	for _, b := range blocks {
		bn := num.blocks[b]
		for i, nd := range bn.nodes {
			if bn.ids[i] == idDependent {
				continue
			}
			cb, cx, cy := f.canonicalPoint(b, nd.X, nd.Y)
			switch {
			case cb == b:
				bn.ids[i] = ownedCount
				ownedCount++
			case f.owners[cb] == rank:
				localRefs = append(localRefs, localRef{nodeRef{b, i}, cb, cx, cy})
			default:
				dst := f.owners[cb]
				requests[dst] = append(requests[dst], octant.Octant{Block: cb, X: cx, Y: cy})
				requestRefs[dst] = append(requestRefs[dst], nodeRef{b, i})
			}
		}
	}
	var ownedDeps int32
	for _, b := range blocks {
		ownedDeps += int32(len(deps[b]))
	}

	// Rank offsets from an all-gather of (independent, dependent) counts.
	var counts [8]byte
	binary.LittleEndian.PutUint32(counts[0:], uint32(ownedCount))
	binary.LittleEndian.PutUint32(counts[4:], uint32(ownedDeps))
	gathered, err := f.comm.AllGather(ctx, counts[:])
	if err != nil {
		return err
	}
	for r, buf := range gathered {
		if len(buf) != len(counts) {
			return errors.New(errors.ErrCodeCommMismatch,
				"rank %d: malformed node count report from rank %d", rank, r)
		}
		n := int32(binary.LittleEndian.Uint32(buf[0:]))
		d := int32(binary.LittleEndian.Uint32(buf[4:]))
		if r < rank {
			num.nodeOffset += n
			num.depOffset += d
		}
		num.totalNodes += n
		num.totalDeps += d
	}
	num.ownedNodes = ownedCount
	num.ownedDeps = ownedDeps

	// Shift local sequence numbers into the global range and hand out
	// dependent ids in the same deterministic block/node order.
	depID := num.depOffset
	for _, b := range blocks {
		bn := num.blocks[b]
		for i, id := range bn.ids {
			if id >= 0 {
				bn.ids[i] = id + num.nodeOffset
			}
		}
		for _, s := range deps[b] {
			i := octant.Search(bn.nodes, s.pos, octant.CompareNodes)
			bn.ids[i] = -(depID + 1)
			depID++
		}
	}

	// Canonical images living in another of this rank's blocks resolve
	// without communication.
	for _, lr := range localRefs {
		cbn := num.blocks[lr.cblock]
		j := octant.Search(cbn.nodes, octant.Octant{Block: lr.cblock, X: lr.cx, Y: lr.cy}, octant.CompareNodes)
		if j < 0 || cbn.ids[j] < 0 {
			return errors.New(errors.ErrCodeInternal,
				"rank %d: canonical image of block %d node in block %d is not an independent node",
				rank, lr.ref.block, lr.cblock)
		}
		num.blocks[lr.ref.block].ids[lr.ref.idx] = cbn.ids[j]
	}

	// Remote ids resolve in one request/reply round trip: requests carry
	// canonical node positions, replies the assigned ids in request order.
	reqIn, err := f.exchangeOctants(ctx, "node-ids", requests)
	if err != nil {
		return err
	}
	replies := make(map[int][]byte, len(reqIn))
	for r, reqs := range reqIn {
		buf := make([]byte, 0, 4*len(reqs))
		for _, q := range reqs {
			bn, ok := num.blocks[q.Block]
			if !ok {
				return errors.New(errors.ErrCodeCommMismatch,
					"rank %d: rank %d requested a node id for block %d owned by rank %d",
					rank, r, q.Block, f.owners[q.Block])
			}
			j := octant.Search(bn.nodes, q, octant.CompareNodes)
			if j < 0 || bn.ids[j] < 0 {
				return errors.New(errors.ErrCodeCommMismatch,
					"rank %d: rank %d requested block %d node at (%d,%d) which is not an independent node here",
					rank, r, q.Block, q.X, q.Y)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(bn.ids[j]))
		}
		replies[r] = buf
	}
	repIn, err := f.comm.Exchange(ctx, replies)
	if err != nil {
		return err
	}
	for r, refs := range requestRefs {
		buf := repIn[r]
		if len(buf) != 4*len(refs) {
			return errors.New(errors.ErrCodeCommMismatch,
				"rank %d: expected %d node ids from rank %d, got %d bytes",
				rank, len(refs), r, len(buf))
		}
		for k, ref := range refs {
			num.blocks[ref.block].ids[ref.idx] = int32(binary.LittleEndian.Uint32(buf[4*k:]))
		}
	}

	// Stencils last, once every target position has a resolved id.
	num.stencils = make([][]stencil.IndexWeight, ownedDeps)
	d := 0
	for _, b := range blocks {
		bn := num.blocks[b]
		for _, s := range deps[b] {
			entries := make([]stencil.IndexWeight, 0, len(s.targets))
			for k, tgt := range s.targets {
				j := octant.Search(bn.nodes, tgt, octant.CompareNodes)
				if j < 0 {
					return errors.New(errors.ErrCodeInternal,
						"rank %d: block %d stencil target at (%d,%d) missing from node array",
						rank, b, tgt.X, tgt.Y)
				}
				id := bn.ids[j]
				if id < 0 {
					return errors.New(errors.ErrCodeStencilDegenerate,
						"rank %d: block %d dependent node at (%d,%d) interpolates from (%d,%d), which is itself dependent",
						rank, b, s.pos.X, s.pos.Y, tgt.X, tgt.Y)
				}
				entries = append(entries, stencil.IndexWeight{Index: id, Weight: s.weights[k]})
			}
			entries = stencil.UniqueSort(entries)
			if err := stencil.CheckPartitionOfUnity(entries, f.opts.StencilTolerance); err != nil {
				return errors.Wrap(errors.ErrCodeStencilDegenerate, err,
					"rank %d: block %d dependent node at (%d,%d)", rank, b, s.pos.X, s.pos.Y)
			}
			num.stencils[d] = entries
			d++
		}
	}

	f.num = num
	observability.Forest().OnNumbering(ctx, int(ownedCount), int(ownedDeps), time.Since(start))
	f.opts.Logger.Debug("numbered nodes",
		"rank", rank, "independent", ownedCount, "dependent", ownedDeps,
		"total_independent", num.totalNodes, "total_dependent", num.totalDeps)
	return nil
}

// NumNodes returns the global count of independent nodes. ok is false until
// CreateNodes has run.
func (f *Forest) NumNodes() (int32, bool) {
	if f.num == nil {
		return 0, false
	}
	return f.num.totalNodes, true
}

// NumDependentNodes returns the global count of dependent nodes. ok is
// false until CreateNodes has run.
func (f *Forest) NumDependentNodes() (int32, bool) {
	if f.num == nil {
		return 0, false
	}
	return f.num.totalDeps, true
}

// exchangeEdgeGhosts sends every boundary leaf's image across each shared
// block edge to the owner of the adjacent block. The returned ghosts are
// grouped by receiving block and by the receiver's local edge (carried in
// the Tag field), sorted by along-edge coordinate, and tile the adjacent
// block's refinement along that edge.
func (f *Forest) exchangeEdgeGhosts(ctx context.Context) (map[int32]*[4][]octant.Octant, error) {
	byRank := make(map[int][]octant.Octant)
	for _, b := range f.OwnedBlocks() {
		t := f.trees[b]
		for e := 0; e < 4; e++ {
			nb, ne, _, ok := f.conn.EdgeNeighbor(b, e)
			if !ok {
				continue
			}
			dst := f.owners[nb]
			for _, l := range t.Leaves() {
				if !touchesEdge(l, e) {
					continue
				}
				img, ok := f.conn.TransformAcrossEdge(b, e, l.FaceNeighbor(e))
				if !ok {
					continue
				}
				img.Tag = int32(ne)
				byRank[dst] = append(byRank[dst], img)
			}
		}
	}

	recv, err := f.exchangeOctants(ctx, "node-ghosts", byRank)
	if err != nil {
		return nil, err
	}
	ghosts := make(map[int32]*[4][]octant.Octant)
	for r, octs := range recv {
		for _, o := range octs {
			if _, ok := f.trees[o.Block]; !ok || o.Tag < 0 || o.Tag > 3 {
				return nil, errors.New(errors.ErrCodeCommMismatch,
					"rank %d: rank %d sent a ghost for block %d edge %d",
					f.comm.Rank(), r, o.Block, o.Tag)
			}
			g, ok := ghosts[o.Block]
			if !ok {
				g = &[4][]octant.Octant{}
				ghosts[o.Block] = g
			}
			g[o.Tag] = append(g[o.Tag], o)
		}
	}
	for _, g := range ghosts {
		for e := range g {
			edge := e
			sort.Slice(g[edge], func(i, j int) bool {
				return alongAnchor(g[edge][i], edge) < alongAnchor(g[edge][j], edge)
			})
		}
	}
	return ghosts, nil
}

// classifyDependents finds the hanging nodes of one block: for every leaf
// face adjacent to a one-level-coarser leaf — in the same tree or, via the
// exchanged ghosts, across a block edge — the fine-lattice edge nodes that
// miss the coarse lattice become dependent, interpolating from the coarse
// edge's nodes. The returned specs are deduplicated and sorted in node
// order, so every rank derives the same dependent sequence.
func (f *Forest) classifyDependents(b int32, ghosts *[4][]octant.Octant) ([]depSpec, error) {
	t := f.trees[b]
	byPos := make(map[[2]int32]depSpec)

	for _, l := range t.Leaves() {
		for e := 0; e < 4; e++ {
			n := l.FaceNeighbor(e)
			var coarseLevel int16
			var coarseU int32
			if n.InDomain(dim) {
				cl, ok := t.CoveringLeaf(n.X, n.Y, 0)
				if !ok {
					return nil, errors.New(errors.ErrCodeInternal,
						"block %d leaves do not tile the domain at (%d,%d)", b, n.X, n.Y)
				}
				coarseLevel, coarseU = cl.Level, alongAnchor(cl, e)
			} else {
				if _, _, _, ok := f.conn.EdgeNeighbor(b, e); !ok {
					continue // domain boundary
				}
				var gs []octant.Octant
				if ghosts != nil {
					gs = ghosts[e]
				}
				g, ok := findGhost(gs, e, alongAnchor(l, e))
				if !ok {
					return nil, errors.New(errors.ErrCodeCommMismatch,
						"rank %d: no ghost covers block %d edge %d at offset %d",
						f.comm.Rank(), b, e, alongAnchor(l, e))
				}
				coarseLevel, coarseU = g.Level, alongAnchor(g, e)
			}
			switch d := int(l.Level) - int(coarseLevel); {
			case d > 1:
				return nil, errors.New(errors.ErrCodeInternal,
					"block %d is not 2:1 balanced at leaf (%d,%d) level %d edge %d; run Balance first",
					b, l.X, l.Y, l.Level, e)
			case d == 1:
				for _, s := range hangingSpecs(b, l, e, coarseU, f.opts.MeshOrder) {
					key := [2]int32{s.pos.X, s.pos.Y}
					if _, seen := byPos[key]; !seen {
						byPos[key] = s
					}
				}
			}
		}
	}

	specs := make([]depSpec, 0, len(byPos))
	for _, s := range byPos {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool {
		return octant.CompareNodes(specs[i].pos, specs[j].pos) < 0
	})
	return specs, nil
}

// hangingSpecs builds the dependent-node specs of one fine leaf edge lying
// on a coarse edge that starts at along-coordinate coarseU and spans twice
// the leaf side. Fine-lattice points already on the coarse lattice are
// independent and produce no spec.
func hangingSpecs(b int32, l octant.Octant, e int, coarseU int32, order int) []depSpec {
	h := l.SideLength()
	fineStep := h / int32(order-1)
	coarseStep := 2 * h / int32(order-1)
	u0 := alongAnchor(l, e)
	v := edgeOffset(l, e)

	targets := make([]octant.Octant, order)
	for j := range targets {
		x, y := edgeNodePoint(e, coarseU+int32(j)*coarseStep, v)
		targets[j] = octant.Octant{Block: b, X: x, Y: y, Level: l.Level - 1}
	}

	var specs []depSpec
	for k := 0; k < order; k++ {
		u := u0 + int32(k)*fineStep
		if (u-coarseU)%coarseStep == 0 {
			continue // on the coarse lattice
		}
		x, y := edgeNodePoint(e, u, v)
		// Reference coordinate on the coarse edge, in [-1, 1].
		xi := float64(u-coarseU)/float64(h) - 1
		specs = append(specs, depSpec{
			pos:     octant.Octant{Block: b, X: x, Y: y, Level: l.Level},
			targets: targets,
			weights: lagrangeWeights(order, xi),
		})
	}
	return specs
}

// lagrangeWeights evaluates the coarse edge's Lagrange shape functions at
// reference coordinate xi. Order 2 uses endpoints at -1 and 1; order 3 adds
// the midpoint at 0.
func lagrangeWeights(order int, xi float64) []float64 {
	if order == 2 {
		return []float64{(1 - xi) / 2, (1 + xi) / 2}
	}
	return []float64{xi * (xi - 1) / 2, 1 - xi*xi, xi * (xi + 1) / 2}
}

// canonicalPoint maps a node position to its canonical image: the same
// physical point expressed in the lowest incident block. Interior nodes are
// their own canonical image.
func (f *Forest) canonicalPoint(b, x, y int32) (cb, cx, cy int32) {
	xb := x == 0 || x == octant.Side
	yb := y == 0 || y == octant.Side
	switch {
	case xb && yb:
		c := 0
		if x == octant.Side {
			c |= 1
		}
		if y == octant.Side {
			c |= 2
		}
		node := f.conn.BlockCorner(b, c)
		cb, cc := b, c
		for _, inc := range f.conn.NodeBlocks(node) {
			if inc.Block < cb {
				cb, cc = inc.Block, inc.Corner
			}
		}
		cx, cy = topology.CornerPoint(cc)
		return cb, cx, cy
	case xb, yb:
		var e int
		var u int32
		if xb {
			if x == octant.Side {
				e = 1
			}
			u = y
		} else {
			e = 2
			if y == octant.Side {
				e = 3
			}
			u = x
		}
		if nb, ne, nu, ok := f.conn.TransformPointAcrossEdge(b, e, u); ok && nb < b {
			cx, cy = topology.EdgePoint(ne, nu)
			return nb, cx, cy
		}
	}
	return b, x, y
}

// touchesEdge reports whether leaf l is adjacent to local edge e of its
// block.
func touchesEdge(l octant.Octant, e int) bool {
	h := l.SideLength()
	switch e {
	case 0:
		return l.X == 0
	case 1:
		return l.X+h == octant.Side
	case 2:
		return l.Y == 0
	default:
		return l.Y+h == octant.Side
	}
}

// alongAnchor returns the octant's anchor coordinate along edge e's axis.
func alongAnchor(o octant.Octant, e int) int32 {
	if e < 2 {
		return o.Y
	}
	return o.X
}

// edgeOffset returns the transverse coordinate of leaf l's face toward
// edge e — the position of the shared edge itself.
func edgeOffset(l octant.Octant, e int) int32 {
	h := l.SideLength()
	switch e {
	case 0:
		return l.X
	case 1:
		return l.X + h
	case 2:
		return l.Y
	default:
		return l.Y + h
	}
}

// edgeNodePoint assembles a node position from an along-edge coordinate u
// and the transverse edge position v.
func edgeNodePoint(e int, u, v int32) (x, y int32) {
	if e < 2 {
		return v, u
	}
	return u, v
}

// findGhost locates the ghost whose along-edge span covers coordinate u.
// ghosts must be sorted by along-edge anchor.
func findGhost(ghosts []octant.Octant, e int, u int32) (octant.Octant, bool) {
	i := sort.Search(len(ghosts), func(i int) bool { return alongAnchor(ghosts[i], e) > u })
	if i == 0 {
		return octant.Octant{}, false
	}
	g := ghosts[i-1]
	if u < alongAnchor(g, e)+g.SideLength() {
		return g, true
	}
	return octant.Octant{}, false
}
