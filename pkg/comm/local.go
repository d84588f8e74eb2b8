package comm

import (
	"context"
	"slices"
	"sync"

	"github.com/meshforge/forestmesh/pkg/errors"
)

// opcode identifies a collective operation so the world can detect ranks
// disagreeing about which collective they are in.
type opcode int8

const (
	opExchange opcode = iota + 1
	opAllReduceBool
	opAllGather
)

var opNames = map[opcode]string{
	opExchange:      "Exchange",
	opAllReduceBool: "AllReduceBool",
	opAllGather:     "AllGather",
}

// World is an in-process communicator universe: size ranks sharing one
// address space, each driven by its own goroutine. Collectives rendezvous
// at an internal barrier; payload slots are published before the barrier
// and read after it, so no additional locking is needed on the data.
//
// A world is single-use per error: once any collective fails (context
// expiry, mismatched operations), the world is poisoned and must be
// discarded.
type World struct {
	size    int
	barrier *barrier
	ops     []opcode
	slots   []map[int][]byte
	flags   []bool
	bufs    [][]byte
}

// NewLocalWorld creates a world of the given number of ranks.
func NewLocalWorld(size int) (*World, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "world size %d must be positive", size)
	}
	return &World{
		size:    size,
		barrier: newBarrier(size),
		ops:     make([]opcode, size),
		slots:   make([]map[int][]byte, size),
		flags:   make([]bool, size),
		bufs:    make([][]byte, size),
	}, nil
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Comm returns the communicator endpoint for the given rank.
func (w *World) Comm(rank int) Communicator {
	if rank < 0 || rank >= w.size {
		panic("comm: rank out of range")
	}
	return &localComm{world: w, rank: rank}
}

// Run executes fn once per rank, each on its own goroutine, and waits for
// all of them. The first error cancels the shared context so ranks blocked
// in a collective unwind instead of waiting forever; that first error is
// returned.
func (w *World) Run(ctx context.Context, fn func(c Communicator) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for rank := 0; rank < w.size; rank++ {
		wg.Add(1)
		go func(c Communicator) {
			defer wg.Done()
			if err := fn(c); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
			}
		}(w.Comm(rank))
	}
	wg.Wait()
	return firstErr
}

type localComm struct {
	world *World
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.world.size }

// sync publishes this rank's opcode, waits for every rank, and verifies
// they all entered the same collective.
func (c *localComm) sync(ctx context.Context, op opcode) error {
	w := c.world
	w.ops[c.rank] = op
	if err := w.barrier.await(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeCommMismatch, err,
			"rank %d: collective %s did not complete on all ranks", c.rank, opNames[op])
	}
	for r, other := range w.ops {
		if other != op {
			return errors.New(errors.ErrCodeCommMismatch,
				"rank %d entered %s while rank %d entered %s", c.rank, opNames[op], r, opNames[other])
		}
	}
	return nil
}

// release waits out the read phase so no rank overwrites shared slots
// while another is still reading them.
func (c *localComm) release(ctx context.Context, op opcode) error {
	if err := c.world.barrier.await(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeCommMismatch, err,
			"rank %d: collective %s did not complete on all ranks", c.rank, opNames[op])
	}
	return nil
}

func (c *localComm) Exchange(ctx context.Context, out map[int][]byte) (map[int][]byte, error) {
	w := c.world
	for dst := range out {
		if dst < 0 || dst >= w.size {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"rank %d: exchange destination %d outside [0, %d)", c.rank, dst, w.size)
		}
	}
	w.slots[c.rank] = out
	if err := c.sync(ctx, opExchange); err != nil {
		return nil, err
	}
	in := make(map[int][]byte)
	for src := 0; src < w.size; src++ {
		if m := w.slots[src]; m != nil {
			if data, ok := m[c.rank]; ok {
				in[src] = slices.Clone(data)
			}
		}
	}
	if err := c.release(ctx, opExchange); err != nil {
		return nil, err
	}
	return in, nil
}

func (c *localComm) AllReduceBool(ctx context.Context, v bool) (bool, error) {
	w := c.world
	w.flags[c.rank] = v
	if err := c.sync(ctx, opAllReduceBool); err != nil {
		return false, err
	}
	any := false
	for _, f := range w.flags {
		any = any || f
	}
	if err := c.release(ctx, opAllReduceBool); err != nil {
		return false, err
	}
	return any, nil
}

func (c *localComm) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	w := c.world
	w.bufs[c.rank] = data
	if err := c.sync(ctx, opAllGather); err != nil {
		return nil, err
	}
	out := make([][]byte, w.size)
	for r, b := range w.bufs {
		out[r] = slices.Clone(b)
	}
	if err := c.release(ctx, opAllGather); err != nil {
		return nil, err
	}
	return out, nil
}

// barrier is a reusable rendezvous for n goroutines. The last arrival
// closes the generation channel; earlier arrivals block on it or on the
// context.
type barrier struct {
	mu    sync.Mutex
	n     int
	count int
	ch    chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, ch: make(chan struct{})}
}

func (b *barrier) await(ctx context.Context) error {
	b.mu.Lock()
	ch := b.ch
	b.count++
	if b.count == b.n {
		b.count = 0
		b.ch = make(chan struct{})
		close(ch)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
