// Package comm abstracts the process-parallel communication the forest
// needs: point-to-point exchange of byte payloads keyed by destination
// rank, and the two collective reductions used to detect global fixed
// points and to assign id ranges.
//
// The model is deliberately minimal and synchronous. Every operation is a
// collective: all ranks of a world must call the same operation in the
// same order, and each call blocks until every rank has joined. The forest
// suspends only at these calls (boundary-candidate exchange, bulk octant
// transfer, fixed-point reduction); there is no asynchronous or
// cancellable messaging beyond the context passed in.
//
// A mismatched collective — a rank calling Exchange while another calls
// AllGather, or a rank that never joins before the context expires — is a
// programming or connectivity bug, and surfaces as a COMM_MISMATCH error
// naming the rank rather than hanging silently.
//
// The in-process implementation ([NewLocalWorld]) runs every rank as a
// goroutine within one binary. The interface leaves room for a networked
// backend, but none is required by the core.
package comm

import "context"

// Communicator is one rank's endpoint into a world of Size ranks.
// Implementations are not safe for concurrent use by multiple goroutines;
// each rank is a single logical thread of control.
type Communicator interface {
	// Rank returns this process's rank in [0, Size).
	Rank() int

	// Size returns the number of ranks in the world.
	Size() int

	// Exchange delivers out[r] to rank r and returns the payloads
	// addressed to this rank, keyed by source rank. Ranks absent from
	// out receive nothing from this rank; self-addressed payloads are
	// delivered like any other. Every rank must call Exchange, even
	// with an empty out map.
	Exchange(ctx context.Context, out map[int][]byte) (map[int][]byte, error)

	// AllReduceBool returns the logical OR of v across all ranks.
	AllReduceBool(ctx context.Context, v bool) (bool, error)

	// AllGather returns every rank's payload, indexed by rank.
	AllGather(ctx context.Context, data []byte) ([][]byte, error)
}
