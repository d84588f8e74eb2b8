package comm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/forestmesh/pkg/errors"
)

func TestNewLocalWorldRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewLocalWorld(size)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "size %d", size)
	}
}

func TestExchange(t *testing.T) {
	w, err := NewLocalWorld(3)
	require.NoError(t, err)

	err = w.Run(context.Background(), func(c Communicator) error {
		// Every rank sends one message to every rank, itself included.
		out := make(map[int][]byte)
		for dst := 0; dst < c.Size(); dst++ {
			out[dst] = []byte(fmt.Sprintf("%d->%d", c.Rank(), dst))
		}
		in, err := c.Exchange(context.Background(), out)
		if err != nil {
			return err
		}
		if len(in) != c.Size() {
			return fmt.Errorf("rank %d received %d messages, want %d", c.Rank(), len(in), c.Size())
		}
		for src, data := range in {
			want := fmt.Sprintf("%d->%d", src, c.Rank())
			if string(data) != want {
				return fmt.Errorf("rank %d got %q from %d, want %q", c.Rank(), data, src, want)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestExchangeSparse(t *testing.T) {
	w, err := NewLocalWorld(4)
	require.NoError(t, err)

	// Only rank 0 sends, only to rank 3.
	err = w.Run(context.Background(), func(c Communicator) error {
		out := map[int][]byte{}
		if c.Rank() == 0 {
			out[3] = []byte("payload")
		}
		in, err := c.Exchange(context.Background(), out)
		if err != nil {
			return err
		}
		switch c.Rank() {
		case 3:
			if string(in[0]) != "payload" {
				return fmt.Errorf("rank 3 got %q", in[0])
			}
			if len(in) != 1 {
				return fmt.Errorf("rank 3 received %d messages", len(in))
			}
		default:
			if len(in) != 0 {
				return fmt.Errorf("rank %d received unexpected messages", c.Rank())
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestExchangeRejectsBadDestination(t *testing.T) {
	w, err := NewLocalWorld(1)
	require.NoError(t, err)
	c := w.Comm(0)
	_, err = c.Exchange(context.Background(), map[int][]byte{7: nil})
	assert.True(t, errors.Is(err, errors.ErrCodeCommMismatch) || errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestAllReduceBool(t *testing.T) {
	tests := []struct {
		name  string
		local func(rank int) bool
		want  bool
	}{
		{"AllFalse", func(int) bool { return false }, false},
		{"OneTrue", func(rank int) bool { return rank == 2 }, true},
		{"AllTrue", func(int) bool { return true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewLocalWorld(4)
			require.NoError(t, err)
			err = w.Run(context.Background(), func(c Communicator) error {
				got, err := c.AllReduceBool(context.Background(), tt.local(c.Rank()))
				if err != nil {
					return err
				}
				if got != tt.want {
					return fmt.Errorf("rank %d reduced to %v, want %v", c.Rank(), got, tt.want)
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestAllGather(t *testing.T) {
	w, err := NewLocalWorld(3)
	require.NoError(t, err)
	err = w.Run(context.Background(), func(c Communicator) error {
		all, err := c.AllGather(context.Background(), []byte{byte(c.Rank() * 10)})
		if err != nil {
			return err
		}
		for r, b := range all {
			if len(b) != 1 || b[0] != byte(r*10) {
				return fmt.Errorf("rank %d gathered %v at index %d", c.Rank(), b, r)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRepeatedCollectives(t *testing.T) {
	w, err := NewLocalWorld(2)
	require.NoError(t, err)
	err = w.Run(context.Background(), func(c Communicator) error {
		ctx := context.Background()
		for round := 0; round < 10; round++ {
			out := map[int][]byte{1 - c.Rank(): {byte(round)}}
			in, err := c.Exchange(ctx, out)
			if err != nil {
				return err
			}
			if in[1-c.Rank()][0] != byte(round) {
				return fmt.Errorf("round %d payload mismatch", round)
			}
			done, err := c.AllReduceBool(ctx, round == 9)
			if err != nil {
				return err
			}
			if done != (round == 9) {
				return fmt.Errorf("round %d reduction mismatch", round)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestMismatchedCollectives(t *testing.T) {
	w, err := NewLocalWorld(2)
	require.NoError(t, err)
	err = w.Run(context.Background(), func(c Communicator) error {
		ctx := context.Background()
		if c.Rank() == 0 {
			_, err := c.Exchange(ctx, nil)
			return err
		}
		_, err := c.AllGather(ctx, nil)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommMismatch), "got %v", err)
}

func TestMissingRankSurfacesError(t *testing.T) {
	w, err := NewLocalWorld(2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Rank 1 never joins the collective; rank 0 must not hang.
	err = w.Run(context.Background(), func(c Communicator) error {
		if c.Rank() == 1 {
			return nil
		}
		_, err := c.Exchange(ctx, nil)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommMismatch), "got %v", err)
}
