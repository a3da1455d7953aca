package keytable

import (
	"encoding/binary"
	"hash/fnv"
	"sync"

	"github.com/tensorkv/tensorkv/internal/tensor"
)

// DefaultSlots is the stripe count used when New is given a non-positive
// slot count. Sixteen stripes keep lock contention low for typical
// per-store concurrency without wasting memory on mostly-empty maps.
const DefaultSlots = 16

// Table is the mutable key space of one store: a mapping from unsigned
// 64-bit keys to tensor values. It is created empty and lives for the
// process lifetime of its store.
//
// The table is striped: keys hash onto a fixed set of slots, each with its
// own map and RWMutex, so concurrent traffic on different keys rarely
// shares a lock while operations on the same key stay linearizable.
// Different tables share nothing; activity in one store never blocks
// another.
//
// The table takes ownership of stored values and hands out references on
// Get. Values are immutable by convention (an overwrite replaces the whole
// pointer); callers must not mutate what Get returns.
type Table struct {
	slots []slot
}

// slot is one stripe of the table.
type slot struct {
	mu      sync.RWMutex
	entries map[uint64]*tensor.Value
}

// New creates an empty table with numSlots stripes, or DefaultSlots when
// numSlots is not positive.
func New(numSlots int) *Table {
	if numSlots <= 0 {
		numSlots = DefaultSlots
	}
	t := &Table{slots: make([]slot, numSlots)}
	for i := range t.slots {
		t.slots[i].entries = make(map[uint64]*tensor.Value)
	}
	return t
}

// slotFor hashes key onto a stripe. FNV-1a over the big-endian key bytes
// decorrelates the stripe index from the shard router's modulo partition,
// so a store serving only every Nth key still spreads across all stripes.
func (t *Table) slotFor(key uint64) *slot {
	h := fnv.New64a()
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], key)
	h.Write(kb[:])
	return &t.slots[h.Sum64()%uint64(len(t.slots))]
}

// Put inserts or overwrites the value for key. Repeated identical puts
// leave the same final state.
func (t *Table) Put(key uint64, v *tensor.Value) {
	s := t.slotFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

// Get returns the value stored for key, or false when the key is absent.
func (t *Table) Get(key uint64) (*tensor.Value, bool) {
	s := t.slotFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Delete removes the entry for key and reports whether one existed.
func (t *Table) Delete(key uint64) bool {
	s := t.slotFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// Keys returns a snapshot of all stored keys, each present exactly once, in
// no particular order. The snapshot is taken stripe by stripe; keys mutated
// concurrently with the call may or may not appear, but a key stable across
// the call always does.
func (t *Table) Keys() []uint64 {
	keys := make([]uint64, 0, t.Len())
	for i := range t.slots {
		s := &t.slots[i]
		s.mu.RLock()
		for key := range s.entries {
			keys = append(keys, key)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Len returns the number of stored entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.slots {
		s := &t.slots[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// NumBytes returns the total payload bytes across all stored values.
func (t *Table) NumBytes() uint64 {
	var n uint64
	for i := range t.slots {
		s := &t.slots[i]
		s.mu.RLock()
		for _, v := range s.entries {
			n += v.NumBytes()
		}
		s.mu.RUnlock()
	}
	return n
}
