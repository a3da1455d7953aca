// Package tensor implements the typed tensor value stored by the engine and
// the codec that validates values on their way in and out of a key table.
//
// A value carries its geometry (shape and element type), two integrity
// fields, and its payload as an ordered sequence of binary chunks. The wire
// gives chunks no explicit index, so arrival order is semantic order and the
// logical payload is the in-order concatenation; see Assemble.
package tensor

import (
	"bytes"
	"math/bits"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
)

// DefaultChunkSize bounds the chunks produced by Split so a single chunk
// stays comfortably under common transport message limits.
const DefaultChunkSize = 64 * 1024

// Validation failures reported by the codec. Wrapped variants carry the
// offending numbers; branch with errors.Is.
var (
	// ErrInvalidShape covers shapes the codec refuses to interpret: no
	// dimensions, overflowing element counts, an unknown element type, or a
	// zero-length dimension paired with a non-empty payload.
	ErrInvalidShape = errors.New("invalid tensor shape")

	// ErrSizeMismatch is returned when the declared size check disagrees
	// with the size implied by shape and dtype, or with the payload itself.
	ErrSizeMismatch = errors.New("tensor size check mismatch")

	// ErrIntegrityMismatch is returned when the key-binding fingerprint
	// does not match the key and payload it supposedly covers.
	ErrIntegrityMismatch = errors.New("tensor integrity check mismatch")
)

// Value is a typed tensor plus the integrity metadata binding it to its key.
// The JSON encoding matches the service schema: chunks marshal as base64
// strings and the dtype as its canonical name.
//
// A Value held by a key table is immutable; mutation happens by replacing
// the whole value. Code handing Values across trust boundaries should use
// Clone to avoid sharing chunk buffers.
type Value struct {
	Shape     []uint64 `json:"shape"`
	DType     dtype.T  `json:"dtype"`
	SizeCheck uint64   `json:"size_check"`
	KeyCheck  uint64   `json:"key_check"`
	Data      [][]byte `json:"data"`
}

// ElemCount returns the number of elements implied by shape, the product of
// all dimensions. Fails on overflow rather than wrapping silently.
func ElemCount(shape []uint64) (uint64, error) {
	elems := uint64(1)
	for _, dim := range shape {
		hi, lo := bits.Mul64(elems, dim)
		if hi != 0 {
			return 0, errors.Newf("shape %v overflows the element count", shape)
		}
		elems = lo
	}
	return elems, nil
}

// ExpectedSize returns the payload byte length implied by shape and dt:
// ceil(product(shape) * bits(dt) / 8). This is the value a sender must
// declare as size_check.
func ExpectedSize(shape []uint64, dt dtype.T) (uint64, error) {
	elems, err := ElemCount(shape)
	if err != nil {
		return 0, err
	}
	return dt.ByteSize(elems)
}

// Elems returns the element count of the value. Values built by the codec
// have already had overflow rejected, so this never fails for stored values.
func (v *Value) Elems() uint64 {
	elems, err := ElemCount(v.Shape)
	if err != nil {
		return 0
	}
	return elems
}

// NumBytes returns the total payload length across all chunks.
func (v *Value) NumBytes() uint64 {
	var n uint64
	for _, c := range v.Data {
		n += uint64(len(c))
	}
	return n
}

// Payload returns the logical payload, the in-order concatenation of all
// chunks, as a freshly allocated slice.
func (v *Value) Payload() []byte {
	out := make([]byte, 0, v.NumBytes())
	for _, c := range v.Data {
		out = append(out, c...)
	}
	return out
}

// Clone returns a deep copy sharing no memory with the receiver.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{
		Shape:     append([]uint64(nil), v.Shape...),
		DType:     v.DType,
		SizeCheck: v.SizeCheck,
		KeyCheck:  v.KeyCheck,
	}
	if v.Data != nil {
		out.Data = make([][]byte, len(v.Data))
		for i, c := range v.Data {
			out.Data[i] = append([]byte(nil), c...)
		}
	}
	return out
}

// Equal reports whether two values are identical, including their chunk
// boundaries. Two values with the same payload split differently are not
// equal; the wire round-trips chunk structure verbatim.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.DType != o.DType || v.SizeCheck != o.SizeCheck || v.KeyCheck != o.KeyCheck {
		return false
	}
	if len(v.Shape) != len(o.Shape) {
		return false
	}
	for i := range v.Shape {
		if v.Shape[i] != o.Shape[i] {
			return false
		}
	}
	if len(v.Data) != len(o.Data) {
		return false
	}
	for i := range v.Data {
		if !bytes.Equal(v.Data[i], o.Data[i]) {
			return false
		}
	}
	return true
}
