package keytable

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// val builds a small INT8 tensor whose payload is derived from the key, so
// round-trip assertions can tell values apart.
func val(t *testing.T, key uint64) *tensor.Value {
	t.Helper()
	payload := []byte{byte(key), byte(key >> 8), byte(key >> 16), byte(key >> 24)}
	v, err := tensor.New(key, []uint64{4}, dtype.INT8, payload)
	require.NoError(t, err)
	return v
}

func TestPutGet(t *testing.T) {
	tbl := New(0)

	t.Run("absent key", func(t *testing.T) {
		_, ok := tbl.Get(1)
		require.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		want := val(t, 10)
		tbl.Put(10, want)
		got, ok := tbl.Get(10)
		require.True(t, ok)
		require.True(t, want.Equal(got))
	})

	t.Run("overwrite replaces the value", func(t *testing.T) {
		first := val(t, 20)
		tbl.Put(20, first)
		second, err := tensor.New(20, []uint64{2}, dtype.INT8, []byte{9, 9})
		require.NoError(t, err)
		tbl.Put(20, second)

		got, ok := tbl.Get(20)
		require.True(t, ok)
		require.True(t, second.Equal(got))
		require.False(t, first.Equal(got))
	})

	t.Run("repeated identical puts are idempotent", func(t *testing.T) {
		want := val(t, 30)
		tbl.Put(30, want)
		tbl.Put(30, want)
		got, ok := tbl.Get(30)
		require.True(t, ok)
		require.True(t, want.Equal(got))
		require.Equal(t, 1, countKey(tbl, 30))
	})
}

func TestDelete(t *testing.T) {
	tbl := New(0)
	tbl.Put(5, val(t, 5))

	t.Run("existing key reports true", func(t *testing.T) {
		require.True(t, tbl.Delete(5))
		_, ok := tbl.Get(5)
		require.False(t, ok)
	})

	t.Run("absent key reports false", func(t *testing.T) {
		require.False(t, tbl.Delete(5))
		require.False(t, tbl.Delete(12345))
	})
}

func TestKeys(t *testing.T) {
	t.Run("empty table", func(t *testing.T) {
		require.Empty(t, New(0).Keys())
	})

	t.Run("surviving set after puts and deletes", func(t *testing.T) {
		tbl := New(4)
		for key := uint64(0); key < 20; key++ {
			tbl.Put(key, val(t, key))
		}
		for key := uint64(0); key < 20; key += 2 {
			require.True(t, tbl.Delete(key))
		}

		keys := tbl.Keys()
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		want := make([]uint64, 0, 10)
		for key := uint64(1); key < 20; key += 2 {
			want = append(want, key)
		}
		require.Equal(t, want, keys)
		require.Equal(t, 10, tbl.Len())
	})

	t.Run("each key exactly once", func(t *testing.T) {
		tbl := New(2)
		for key := uint64(0); key < 100; key++ {
			tbl.Put(key, val(t, key))
		}
		seen := make(map[uint64]int)
		for _, key := range tbl.Keys() {
			seen[key]++
		}
		require.Len(t, seen, 100)
		for key, n := range seen {
			require.Equal(t, 1, n, "key %d", key)
		}
	})
}

func TestNumBytes(t *testing.T) {
	tbl := New(0)
	require.Zero(t, tbl.NumBytes())

	tbl.Put(1, val(t, 1))
	tbl.Put(2, val(t, 2))
	require.Equal(t, uint64(8), tbl.NumBytes())

	tbl.Delete(1)
	require.Equal(t, uint64(4), tbl.NumBytes())
}

// TestConcurrentAccess hammers one table from many goroutines; run with
// -race to catch synchronization bugs.
func TestConcurrentAccess(t *testing.T) {
	tbl := New(0)
	const (
		workers = 8
		keys    = 64
		rounds  = 50
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				key := uint64((w*rounds + i) % keys)
				tbl.Put(key, val(t, key))
				if got, ok := tbl.Get(key); ok {
					_ = got.NumBytes()
				}
				if i%10 == 9 {
					tbl.Delete(key)
				}
				_ = tbl.Keys()
			}
		}(w)
	}
	wg.Wait()

	// Every surviving entry must still round-trip to its own key's value.
	for _, key := range tbl.Keys() {
		got, ok := tbl.Get(key)
		require.True(t, ok)
		require.True(t, val(t, key).Equal(got))
	}
}

// countKey counts occurrences of key in the snapshot, guarding the
// exactly-once property.
func countKey(tbl *Table, key uint64) int {
	n := 0
	for _, k := range tbl.Keys() {
		if k == key {
			n++
		}
	}
	return n
}
