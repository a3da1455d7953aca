package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/shard"
	"github.com/tensorkv/tensorkv/internal/store"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// The engine's failure taxonomy. Each failure an operation can report maps
// to exactly one of these sentinels; callers branch with errors.Is or
// KindOf instead of matching message prose. Most sentinels live in the
// package that detects the failure and are aliased here so the transport
// only ever imports the engine.
var (
	// ErrAlreadyExists: CreateStore on a name that is already registered.
	ErrAlreadyExists = store.ErrAlreadyExists

	// ErrInvalidRange: CreateStore with range == 0, position >= range, or an
	// empty store name.
	ErrInvalidRange = shard.ErrInvalidRange

	// ErrOutOfRange: a key operation against a store whose partition does
	// not own the key.
	ErrOutOfRange = shard.ErrOutOfRange

	// ErrInvalidShape, ErrSizeMismatch, ErrIntegrityMismatch: value
	// validation failures, detected by the codec on put and re-checked on
	// get.
	ErrInvalidShape      = tensor.ErrInvalidShape
	ErrSizeMismatch      = tensor.ErrSizeMismatch
	ErrIntegrityMismatch = tensor.ErrIntegrityMismatch

	// ErrNotFound: get or delete on an absent key, or any operation naming
	// an unknown store. A normal, reported outcome, never fatal.
	ErrNotFound = errors.New("not found")
)

// Kind labels one outcome class of an engine operation. Kinds are stable
// strings, usable as metric label values and switchable by transports
// mapping failures onto wire status codes.
type Kind string

// The outcome classes. KindInternal covers errors outside the taxonomy;
// the engine itself never produces it, but transports treat it as the
// "unexpected failure" bucket.
const (
	KindOK                Kind = "ok"
	KindAlreadyExists     Kind = "already_exists"
	KindInvalidRange      Kind = "invalid_range"
	KindOutOfRange        Kind = "out_of_range"
	KindInvalidShape      Kind = "invalid_shape"
	KindSizeMismatch      Kind = "size_mismatch"
	KindIntegrityMismatch Kind = "integrity_mismatch"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// KindOf classifies an error returned by an engine operation. A nil error
// is KindOK; anything outside the taxonomy is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidRange):
		return KindInvalidRange
	case errors.Is(err, ErrOutOfRange):
		return KindOutOfRange
	case errors.Is(err, ErrInvalidShape):
		return KindInvalidShape
	case errors.Is(err, ErrSizeMismatch):
		return KindSizeMismatch
	case errors.Is(err, ErrIntegrityMismatch):
		return KindIntegrityMismatch
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
