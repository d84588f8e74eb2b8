// Package forest implements the distributed quadtree forest: one tree per
// block of a multi-block domain, partitioned across the ranks of a
// communicator, kept globally 2:1 balanced and numbered into a single
// finite-element mesh with hanging-node interpolation stencils.
//
// The lifecycle is New → CreateTrees → Balance → (optional Repartition) →
// CreateNodes → GetMesh. Balance and Repartition invalidate any node
// numbering; CreateNodes must run again afterwards.
//
// Every rank holds the full block connectivity but only the trees of the
// blocks it owns. Block ownership starts as contiguous index ranges and is
// updated by Repartition; all ranks track the full owner table, so any rank
// can address the owner of any block without communication.
package forest

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/meshforge/forestmesh/pkg/comm"
	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/octant"
	"github.com/meshforge/forestmesh/pkg/stencil"
	"github.com/meshforge/forestmesh/pkg/topology"
	"github.com/meshforge/forestmesh/pkg/tree"
)

// dim is the spatial dimension of the forest. Blocks are quadrilateral, so
// the forest is a forest of quadtrees; single-block octrees are available
// directly through the tree package.
const dim = 2

// Options configures a forest at construction. The zero value selects the
// defaults noted on each field.
type Options struct {
	// MeshOrder is the element order used by CreateNodes: 2 for corner
	// nodes only, 3 for corners, edge midpoints and centers. Default 2.
	MeshOrder int

	// StencilTolerance bounds how far a dependent node's merged stencil
	// weights may deviate from summing to one. Default
	// stencil.DefaultTolerance.
	StencilTolerance float64

	// MaxBalanceRounds caps the cross-block balance iteration. The fixed
	// point is normally reached in far fewer rounds; hitting the cap
	// indicates a bug and surfaces as an error. Default octant.MaxLevel+2.
	MaxBalanceRounds int

	// Logger receives per-round progress at debug level. Default
	// log.Default().
	Logger *log.Logger
}

func (o *Options) setDefaults() error {
	if o.MeshOrder == 0 {
		o.MeshOrder = 2
	}
	if err := errors.ValidateMeshOrder(o.MeshOrder); err != nil {
		return err
	}
	if o.StencilTolerance <= 0 {
		o.StencilTolerance = stencil.DefaultTolerance
	}
	if o.MaxBalanceRounds <= 0 {
		o.MaxBalanceRounds = octant.MaxLevel + 2
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return nil
}

// Forest is one rank's view of the distributed forest.
type Forest struct {
	conn   *topology.Connectivity
	comm   comm.Communicator
	opts   Options
	owners []int                // block -> owning rank
	trees  map[int32]*tree.Tree // owned blocks only
	num    *numbering           // set by CreateNodes, nil until then
}

// New creates a forest over the given connectivity and communicator. The
// initial block ownership splits the block index range into contiguous,
// near-equal chunks, one per rank; every rank derives the same table.
func New(conn *topology.Connectivity, c comm.Communicator, opts Options) (*Forest, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	nb := conn.NumBlocks()
	owners := make([]int, nb)
	for b := range owners {
		owners[b] = min(c.Size()-1, b*c.Size()/nb)
	}
	return &Forest{conn: conn, comm: c, opts: opts, owners: owners}, nil
}

// Rank returns this process's rank.
func (f *Forest) Rank() int { return f.comm.Rank() }

// NumBlocks returns the number of blocks in the domain.
func (f *Forest) NumBlocks() int { return f.conn.NumBlocks() }

// Owner returns the rank owning the given block.
func (f *Forest) Owner(block int32) int { return f.owners[block] }

// Connectivity returns the block connectivity graph the forest was built on.
func (f *Forest) Connectivity() *topology.Connectivity { return f.conn }

// OwnedBlocks returns the blocks owned by this rank in ascending order.
func (f *Forest) OwnedBlocks() []int32 {
	out := make([]int32, 0, len(f.trees))
	for b := range f.trees {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tree returns the tree of an owned block.
func (f *Forest) Tree(block int32) (*tree.Tree, bool) {
	t, ok := f.trees[block]
	return t, ok
}

// NumOwnedLeaves returns the number of leaf octants across this rank's trees.
func (f *Forest) NumOwnedLeaves() int {
	n := 0
	for _, t := range f.trees {
		n += t.NumLeaves()
	}
	return n
}

// CreateTrees builds a uniformly refined tree for every owned block. The
// level must lie in [0, octant.MaxLevel].
func (f *Forest) CreateTrees(level int) error {
	levels := make([]int, f.conn.NumBlocks())
	for i := range levels {
		levels[i] = level
	}
	return f.CreateTreesRefined(levels)
}

// CreateTreesRefined builds trees with a per-block initial refinement level,
// one entry per block. All ranks must pass the same levels.
func (f *Forest) CreateTreesRefined(levels []int) error {
	if len(levels) != f.conn.NumBlocks() {
		return errors.New(errors.ErrCodeInvalidInput,
			"got %d refinement levels for %d blocks", len(levels), f.conn.NumBlocks())
	}
	for b, level := range levels {
		if err := errors.ValidateLevel(level, octant.MaxLevel); err != nil {
			return errors.Wrap(errors.ErrCodeRefinementBounds, err, "block %d", b)
		}
	}
	trees := make(map[int32]*tree.Tree)
	for b, level := range levels {
		if f.owners[b] != f.comm.Rank() {
			continue
		}
		t, err := tree.NewUniform(int32(b), dim, level)
		if err != nil {
			return err
		}
		trees[int32(b)] = t
	}
	f.trees = trees
	f.num = nil
	return nil
}

// Coarsen returns a new forest one refinement level coarser: in every owned
// tree, complete sibling groups collapse into their parent. Ownership and
// connectivity carry over; the receiver is left untouched. The coarse forest
// has no node numbering until CreateNodes runs on it.
func (f *Forest) Coarsen() *Forest {
	coarse := &Forest{
		conn:   f.conn,
		comm:   f.comm,
		opts:   f.opts,
		owners: append([]int(nil), f.owners...),
		trees:  make(map[int32]*tree.Tree, len(f.trees)),
	}
	for b, t := range f.trees {
		coarse.trees[b] = t.Coarsen()
	}
	return coarse
}

// requireTrees guards operations that need CreateTrees to have run.
func (f *Forest) requireTrees(op string) error {
	if f.trees == nil {
		return errors.New(errors.ErrCodeInvalidInput, "%s requires CreateTrees to run first", op)
	}
	return nil
}
