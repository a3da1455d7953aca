// Package dtype defines the closed set of tensor element types understood by
// the store, along with the bit-width arithmetic used to validate payload
// sizes.
//
// The enumeration and its ordinals are wire values: they mirror the dtype
// enum of the service schema and must never be renumbered or extended
// in-place. Sub-byte types (1, 2 and 4 bit widths) are supported; payload
// sizes are therefore computed in bits and rounded up to whole bytes.
package dtype

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// T identifies a tensor element type. The zero value is FP1; use Valid to
// distinguish deliberate values from uninitialized ones where it matters.
type T int32

// The 16 element kinds, in wire-ordinal order.
const (
	FP1  T = iota // 1-bit float
	FP2           // 2-bit float
	FP4           // 4-bit float
	FP8           // 8-bit float
	BF16          // bfloat16
	FP16          // IEEE half
	FP32          // IEEE single
	FP64          // IEEE double
	INT1          // 1-bit integer
	INT2          // 2-bit integer
	INT4          // 4-bit integer
	INT8          // 8-bit integer
	INT16         // 16-bit integer
	INT32         // 32-bit integer
	INT64         // 64-bit integer
	BOOL          // boolean, stored packed at 1 bit per element
)

// NumKinds is the size of the enumeration.
const NumKinds = 16

var names = [NumKinds]string{
	"FP1", "FP2", "FP4", "FP8", "BF16", "FP16", "FP32", "FP64",
	"INT1", "INT2", "INT4", "INT8", "INT16", "INT32", "INT64", "BOOL",
}

var widths = [NumKinds]uint64{
	1, 2, 4, 8, 16, 16, 32, 64,
	1, 2, 4, 8, 16, 32, 64, 1,
}

// Valid reports whether t is one of the enumerated kinds.
func (t T) Valid() bool {
	return t >= 0 && int(t) < NumKinds
}

// String returns the canonical name of the kind ("FP32", "BOOL", ...).
// Unknown values render as their ordinal so they stay identifiable in logs.
func (t T) String() string {
	if !t.Valid() {
		return fmt.Sprintf("dtype(%d)", int32(t))
	}
	return names[t]
}

// Bits returns the width of a single element in bits. Unknown kinds report
// zero; callers are expected to have validated t first.
func (t T) Bits() uint64 {
	if !t.Valid() {
		return 0
	}
	return widths[t]
}

// ByteSize returns the number of bytes needed to hold elems elements of
// type t, rounding the final partial byte up. Fails if the product of
// element count and width overflows, which no storable tensor can reach.
func (t T) ByteSize(elems uint64) (uint64, error) {
	if !t.Valid() {
		return 0, errors.Newf("unknown dtype ordinal %d", int32(t))
	}
	hi, lo := bits.Mul64(elems, widths[t])
	if hi != 0 || lo > ^uint64(0)-7 {
		return 0, errors.Newf("%d elements of %s overflow the byte-size computation", elems, t)
	}
	return (lo + 7) / 8, nil
}

// FromOrdinal converts a wire ordinal into a kind, rejecting values outside
// the closed enumeration.
func FromOrdinal(v int32) (T, error) {
	t := T(v)
	if !t.Valid() {
		return 0, errors.Newf("unknown dtype ordinal %d", v)
	}
	return t, nil
}

// FromName converts a canonical name into a kind. Matching is
// case-insensitive to be forgiving toward hand-written requests.
func FromName(s string) (T, error) {
	for i, n := range names {
		if strings.EqualFold(s, n) {
			return T(i), nil
		}
	}
	return 0, errors.Newf("unknown dtype name %q", s)
}

// All returns every kind in ordinal order, for tests and exhaustive tables.
func All() []T {
	out := make([]T, NumKinds)
	for i := range out {
		out[i] = T(i)
	}
	return out
}

// MarshalJSON encodes the kind as its canonical name.
func (t T) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Newf("cannot marshal unknown dtype ordinal %d", int32(t))
	}
	return []byte(strconv.Quote(names[t])), nil
}

// UnmarshalJSON accepts either the canonical name ("FP32") or the wire
// ordinal (6), mirroring the usual JSON treatment of schema enums.
func (t *T) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) > 0 && s[0] == '"' {
		name, err := strconv.Unquote(s)
		if err != nil {
			return errors.Wrap(err, "malformed dtype string")
		}
		v, err := FromName(name)
		if err != nil {
			return err
		}
		*t = v
		return nil
	}
	ord, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return errors.Wrapf(err, "malformed dtype ordinal %s", s)
	}
	v, err := FromOrdinal(int32(ord))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
