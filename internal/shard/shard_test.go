package shard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		position uint64
		rng      uint64
		wantErr  bool
	}{
		{name: "single partition", position: 0, rng: 1},
		{name: "first of two", position: 0, rng: 2},
		{name: "last of many", position: 127, rng: 128},
		{name: "zero range", position: 0, rng: 0, wantErr: true},
		{name: "position equals range", position: 2, rng: 2, wantErr: true},
		{name: "position beyond range", position: 10, rng: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.position, tt.rng)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.position, r.Position)
			require.Equal(t, tt.rng, r.Range)
		})
	}
}

func TestOwner(t *testing.T) {
	t.Run("total and stable", func(t *testing.T) {
		keys := []uint64{0, 1, 2, 10, 11, 63, 64, 1 << 32, math.MaxUint64}
		for _, key := range keys {
			first := Owner(key, 7)
			require.Less(t, first, uint64(7))
			// Same inputs, same verdict, every time.
			for i := 0; i < 3; i++ {
				require.Equal(t, first, Owner(key, 7))
			}
		}
	})

	t.Run("collectively exhaustive", func(t *testing.T) {
		// Every key lands on exactly one position; with modulo partitioning a
		// dense key run touches each position exactly once per cycle.
		const rng = 5
		seen := make(map[uint64]int)
		for key := uint64(0); key < rng*3; key++ {
			seen[Owner(key, rng)]++
		}
		require.Len(t, seen, rng)
		for pos, n := range seen {
			require.Equal(t, 3, n, "position %d", pos)
		}
	})
}

func TestOwns(t *testing.T) {
	t.Run("single partition owns everything", func(t *testing.T) {
		r, err := New(0, 1)
		require.NoError(t, err)
		for _, key := range []uint64{0, 1, 42, math.MaxUint64} {
			require.True(t, r.Owns(key))
		}
	})

	t.Run("split two ways by parity", func(t *testing.T) {
		even, err := New(0, 2)
		require.NoError(t, err)
		odd, err := New(1, 2)
		require.NoError(t, err)

		require.True(t, even.Owns(10))
		require.False(t, even.Owns(11))
		require.True(t, odd.Owns(11))
		require.False(t, odd.Owns(10))
	})

	t.Run("exactly one owner per key", func(t *testing.T) {
		const rng = 8
		routers := make([]Router, rng)
		for pos := uint64(0); pos < rng; pos++ {
			r, err := New(pos, rng)
			require.NoError(t, err)
			routers[pos] = r
		}
		for _, key := range []uint64{0, 7, 8, 9, 12345, math.MaxUint64 - 1, math.MaxUint64} {
			owners := 0
			for _, r := range routers {
				if r.Owns(key) {
					owners++
				}
			}
			require.Equal(t, 1, owners, "key %d", key)
		}
	})
}

func TestCheck(t *testing.T) {
	r, err := New(0, 2)
	require.NoError(t, err)

	t.Run("owned key passes", func(t *testing.T) {
		require.NoError(t, r.Check(10))
	})

	t.Run("foreign key fails with the owning position", func(t *testing.T) {
		err := r.Check(11)
		require.ErrorIs(t, err, ErrOutOfRange)
		require.Contains(t, err.Error(), "position 1")
	})
}
