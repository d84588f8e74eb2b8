package forest

import (
	"context"
	"time"

	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/observability"
	"github.com/meshforge/forestmesh/pkg/octant"
	"github.com/meshforge/forestmesh/pkg/topology"
	"github.com/meshforge/forestmesh/pkg/tree"
)

// Balance enforces the 2:1 constraint across the whole forest, block
// boundaries included: after it returns on every rank, any two leaves
// sharing a face (or, with corners set, a corner) differ in level by at
// most one, regardless of which blocks or ranks they live on.
//
// Each round balances the locally dirty trees, transforms their boundary
// obligations into the adjacent blocks' frames, exchanges them by owning
// rank and merges what arrives. The loop ends when a logical-OR reduction
// reports that no rank changed anything, so all ranks leave together.
func (f *Forest) Balance(ctx context.Context, corners bool) error {
	if err := f.requireTrees("Balance"); err != nil {
		return err
	}
	f.num = nil

	dirty := make(map[int32]struct{}, len(f.trees))
	for b := range f.trees {
		dirty[b] = struct{}{}
	}

	for round := 0; ; round++ {
		if round >= f.opts.MaxBalanceRounds {
			return errors.New(errors.ErrCodeInternal,
				"rank %d: balance did not reach a fixed point within %d rounds",
				f.comm.Rank(), f.opts.MaxBalanceRounds)
		}
		start := time.Now()

		for b := range dirty {
			f.trees[b].Balance(corners)
		}

		byRank := make(map[int][]octant.Octant)
		sent := 0
		for b := range dirty {
			sent += f.collectBoundary(b, corners, byRank)
		}

		recv, err := f.exchangeOctants(ctx, "balance", byRank)
		if err != nil {
			return err
		}

		byBlock := make(map[int32][]octant.Octant)
		for _, octs := range recv {
			for _, o := range octs {
				byBlock[o.Block] = append(byBlock[o.Block], o)
			}
		}
		next := make(map[int32]struct{})
		for b, cands := range byBlock {
			t, ok := f.trees[b]
			if !ok {
				return errors.New(errors.ErrCodeCommMismatch,
					"rank %d received balance candidates for block %d owned by rank %d",
					f.comm.Rank(), b, f.owners[b])
			}
			if t.MergeRequired(cands) {
				next[b] = struct{}{}
			}
		}

		changed, err := f.comm.AllReduceBool(ctx, len(next) > 0)
		if err != nil {
			return err
		}
		observability.Forest().OnBalanceRound(ctx, round, sent, changed, time.Since(start))
		f.opts.Logger.Debug("balance round",
			"rank", f.comm.Rank(), "round", round, "sent", sent, "changed", changed)
		if !changed {
			return nil
		}
		dirty = next
	}
}

// collectBoundary gathers the balance obligations of one tree that fall
// outside its block, transforms each into the frame of every adjacent block
// and appends it to byRank keyed by the owning rank. It returns the number
// of candidates produced.
func (f *Forest) collectBoundary(block int32, corners bool, byRank map[int][]octant.Octant) int {
	t := f.trees[block]
	sent := 0
	var obls []octant.Octant
	for _, l := range t.Leaves() {
		obls = tree.Obligations(l, dim, corners, obls)
		for _, n := range obls {
			if n.InDomain(dim) {
				continue
			}
			sent += f.route(block, n, byRank)
		}
	}
	return sent
}

// route sends one out-of-domain obligation to the blocks it constrains: the
// edge neighbor when it lies across one block edge, or every block incident
// to the corner when it lies diagonally past a block corner. Obligations
// past a domain boundary are dropped.
func (f *Forest) route(block int32, n octant.Octant, byRank map[int][]octant.Octant) int {
	h := n.SideLength()
	xo, yo := 0, 0
	if n.X < 0 {
		xo = -1
	} else if n.X+h > octant.Side {
		xo = 1
	}
	if n.Y < 0 {
		yo = -1
	} else if n.Y+h > octant.Side {
		yo = 1
	}

	if xo != 0 && yo != 0 {
		c := 0
		if xo > 0 {
			c |= 1
		}
		if yo > 0 {
			c |= 2
		}
		node := f.conn.BlockCorner(block, c)
		sent := 0
		for _, inc := range f.conn.NodeBlocks(node) {
			if inc.Block == block {
				continue
			}
			img := topology.CornerOctant(inc.Block, inc.Corner, n.Level)
			byRank[f.owners[img.Block]] = append(byRank[f.owners[img.Block]], img)
			sent++
		}
		return sent
	}

	e := 0
	switch {
	case xo > 0:
		e = 1
	case yo < 0:
		e = 2
	case yo > 0:
		e = 3
	}
	img, ok := f.conn.TransformAcrossEdge(block, e, n)
	if !ok {
		return 0
	}
	byRank[f.owners[img.Block]] = append(byRank[f.owners[img.Block]], img)
	return 1
}

// exchangeOctants encodes the per-rank octant batches, runs one collective
// exchange and decodes what arrives. op names the operation for hooks and
// error messages.
func (f *Forest) exchangeOctants(ctx context.Context, op string, byRank map[int][]octant.Octant) (map[int][]octant.Octant, error) {
	out := make(map[int][]byte, len(byRank))
	total := 0
	for r, octs := range byRank {
		buf := octant.Encode(nil, octs)
		out[r] = buf
		total += len(buf)
	}
	observability.Forest().OnExchange(ctx, op, total)

	raw, err := f.comm.Exchange(ctx, out)
	if err != nil {
		return nil, err
	}
	in := make(map[int][]octant.Octant, len(raw))
	for r, buf := range raw {
		octs, err := octant.Decode(buf)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCommMismatch, err,
				"rank %d: malformed %s payload from rank %d", f.comm.Rank(), op, r)
		}
		in[r] = octs
	}
	return in, nil
}
