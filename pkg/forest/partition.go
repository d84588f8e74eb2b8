package forest

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/observability"
	"github.com/meshforge/forestmesh/pkg/octant"
	"github.com/meshforge/forestmesh/pkg/tree"
)

// blockWeightSize is the wire size of one (block, weight) record in the
// repartition all-gather.
const blockWeightSize = 12

// Repartition redistributes whole trees across ranks so that the summed
// leaf weight per rank is approximately even. weight gives the cost of one
// leaf; nil counts every leaf as 1.
//
// Blocks keep their global space-filling-curve order: per-block weights are
// gathered on every rank, and block b moves to the rank whose equal share of
// the total weight contains b's weight midpoint. Cuts are therefore
// contiguous in block index, deterministic, and identical on all ranks.
// Trees are shipped wholesale in one exchange; the global leaf population is
// unchanged.
func (f *Forest) Repartition(ctx context.Context, weight func(octant.Octant) float64) error {
	if err := f.requireTrees("Repartition"); err != nil {
		return err
	}
	f.num = nil
	start := time.Now()

	nb := f.conn.NumBlocks()
	size := f.comm.Size()
	rank := f.comm.Rank()

	payload := make([]byte, 0, blockWeightSize*len(f.trees))
	for _, b := range f.OwnedBlocks() {
		w := 0.0
		for _, l := range f.trees[b].Leaves() {
			if weight == nil {
				w++
			} else {
				w += weight(l)
			}
		}
		if w < 0 || math.IsNaN(w) {
			return errors.New(errors.ErrCodeInvalidInput,
				"block %d has invalid total weight %g", b, w)
		}
		var rec [blockWeightSize]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(b))
		binary.LittleEndian.PutUint64(rec[4:], math.Float64bits(w))
		payload = append(payload, rec[:]...)
	}

	gathered, err := f.comm.AllGather(ctx, payload)
	if err != nil {
		return err
	}
	weights := make([]float64, nb)
	seen := make([]bool, nb)
	for r, buf := range gathered {
		if len(buf)%blockWeightSize != 0 {
			return errors.New(errors.ErrCodeCommMismatch,
				"rank %d: truncated weight report of %d bytes from rank %d", rank, len(buf), r)
		}
		for ; len(buf) > 0; buf = buf[blockWeightSize:] {
			b := int32(binary.LittleEndian.Uint32(buf[0:]))
			if int(b) >= nb || seen[b] {
				return errors.New(errors.ErrCodeCommMismatch,
					"rank %d: rank %d reported weight for unexpected block %d", rank, r, b)
			}
			seen[b] = true
			weights[b] = math.Float64frombits(binary.LittleEndian.Uint64(buf[4:]))
		}
	}
	total := 0.0
	for b, w := range weights {
		if !seen[b] {
			return errors.New(errors.ErrCodeCommMismatch, "rank %d: no rank reported block %d", rank, b)
		}
		total += w
	}
	if total <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "total leaf weight %g must be positive", total)
	}

	// Cut at weight midpoints: block b lands on the rank whose share of
	// [0, total) contains the midpoint of b's weight interval. Midpoints
	// increase with b, so each rank's blocks stay contiguous.
	newOwners := make([]int, nb)
	prefix := 0.0
	for b, w := range weights {
		mid := prefix + w/2
		newOwners[b] = min(size-1, int(mid*float64(size)/total))
		prefix += w
	}

	byRank := make(map[int][]octant.Octant)
	shipped := 0
	for b, t := range f.trees {
		if dst := newOwners[b]; dst != rank {
			byRank[dst] = append(byRank[dst], t.Leaves()...)
			shipped++
		}
	}
	recv, err := f.exchangeOctants(ctx, "repartition", byRank)
	if err != nil {
		return err
	}

	for b := range f.trees {
		if newOwners[b] != rank {
			delete(f.trees, b)
		}
	}
	byBlock := make(map[int32][]octant.Octant)
	for _, octs := range recv {
		for _, o := range octs {
			byBlock[o.Block] = append(byBlock[o.Block], o)
		}
	}
	received := 0
	for b, leaves := range byBlock {
		if newOwners[b] != rank {
			return errors.New(errors.ErrCodeCommMismatch,
				"rank %d received block %d assigned to rank %d", rank, b, newOwners[b])
		}
		f.trees[b] = tree.NewFromLeaves(b, dim, leaves)
		received++
	}
	for b, owner := range newOwners {
		if owner == rank {
			if _, ok := f.trees[int32(b)]; !ok {
				return errors.New(errors.ErrCodeCommMismatch,
					"rank %d was assigned block %d but rank %d never shipped it", rank, b, f.owners[b])
			}
		}
	}
	f.owners = newOwners

	observability.Forest().OnRepartition(ctx, shipped, received, time.Since(start))
	f.opts.Logger.Debug("repartitioned",
		"rank", rank, "shipped", shipped, "received", received, "blocks", len(f.trees))
	return nil
}
