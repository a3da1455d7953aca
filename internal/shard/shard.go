package shard

import (
	"github.com/cockroachdb/errors"
)

// Routing failures. Wrapped variants carry the offending numbers; branch
// with errors.Is.
var (
	// ErrInvalidRange is returned when a router is constructed with a zero
	// range or a position outside [0, range).
	ErrInvalidRange = errors.New("invalid shard range")

	// ErrOutOfRange is returned when a key does not belong to the shard a
	// store instance serves.
	ErrOutOfRange = errors.New("key out of range")
)

// Router decides which keys a store instance owns. Position selects one of
// Range partitions of the 64-bit key space; both are fixed at store creation
// and never change.
//
// The partition function is modulo: a key belongs to position key % Range.
// It is total (every key maps to exactly one position), stable (the verdict
// depends only on the inputs), and collectively exhaustive (the positions
// [0, Range) cover the key space with no overlap). Contiguous intervals
// would satisfy the same contract; modulo is the documented choice here
// because it needs no boundary arithmetic and spreads dense key sequences
// evenly across instances.
//
// A Router is a pure value: copy it freely, use it from any goroutine.
type Router struct {
	Position uint64 // The partition this instance serves
	Range    uint64 // Total number of partitions in the key space
}

// New constructs a router for one partition of a key space split rng ways.
// Fails with ErrInvalidRange when rng is zero or position does not lie
// strictly within [0, rng).
func New(position, rng uint64) (Router, error) {
	if rng == 0 {
		return Router{}, errors.Wrap(ErrInvalidRange, "range must be positive")
	}
	if position >= rng {
		return Router{}, errors.Wrapf(ErrInvalidRange,
			"position %d must lie in [0, %d)", position, rng)
	}
	return Router{Position: position, Range: rng}, nil
}

// Owner maps a key to the position that owns it under a key space split rng
// ways. rng must be positive; Owner panics on zero because every Router has
// already validated it.
func Owner(key, rng uint64) uint64 {
	return key % rng
}

// Owns reports whether this instance's partition contains key.
func (r Router) Owns(key uint64) bool {
	return Owner(key, r.Range) == r.Position
}

// Check returns nil when this instance owns key and a wrapped ErrOutOfRange
// naming the owning position otherwise. Callers run this before touching
// their key table.
func (r Router) Check(key uint64) error {
	if owner := Owner(key, r.Range); owner != r.Position {
		return errors.Wrapf(ErrOutOfRange,
			"key %d belongs to position %d, this store serves position %d of %d",
			key, owner, r.Position, r.Range)
	}
	return nil
}
