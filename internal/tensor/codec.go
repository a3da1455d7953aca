package tensor

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
)

// Fingerprint computes the key-binding fingerprint of a payload: FNV-1a 64
// over the big-endian key bytes followed by every chunk in order. Chunk
// boundaries do not affect the result, only the concatenated payload does.
func Fingerprint(key uint64, chunks ...[]byte) uint64 {
	h := fnv.New64a()
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], key)
	h.Write(kb[:])
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum64()
}

// Assemble validates the pieces of an incoming value against each other and
// against the key it is destined for, and returns the assembled Value.
//
// The checks, in order:
//   - the shape must have at least one dimension and a non-overflowing
//     element count, and the element type must be known (ErrInvalidShape);
//   - a zero element count (some dimension is zero) requires an empty
//     payload (ErrInvalidShape);
//   - sizeCheck must equal both the byte length implied by shape and dtype
//     and the actual concatenated chunk length (ErrSizeMismatch);
//   - keyCheck must equal Fingerprint(key, chunks...) (ErrIntegrityMismatch).
//
// Assemble is a pure function and safe for unsynchronized concurrent use.
// The returned Value owns copies of shape and chunks; callers may reuse
// their buffers freely afterwards.
func Assemble(
	key uint64,
	shape []uint64,
	dt dtype.T,
	sizeCheck, keyCheck uint64,
	chunks [][]byte,
) (*Value, error) {
	if len(shape) == 0 {
		return nil, errors.Wrap(ErrInvalidShape, "shape has no dimensions")
	}
	elems, err := ElemCount(shape)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidShape, "shape %v overflows the element count", shape)
	}
	if !dt.Valid() {
		// The schema's dtype enum is closed, so a conforming client cannot
		// send this; it is reachable through the Go API.
		return nil, errors.Wrapf(ErrInvalidShape, "unknown dtype ordinal %d", int32(dt))
	}

	actual := uint64(0)
	for _, c := range chunks {
		actual += uint64(len(c))
	}
	if elems == 0 && actual != 0 {
		return nil, errors.Wrapf(ErrInvalidShape,
			"shape %v holds no elements but payload has %d bytes", shape, actual)
	}

	expected, err := dt.ByteSize(elems)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidShape, "shape %v of %s overflows the byte size", shape, dt)
	}
	if sizeCheck != expected {
		return nil, errors.Wrapf(ErrSizeMismatch,
			"declared size_check %d but shape %v of %s implies %d bytes",
			sizeCheck, shape, dt, expected)
	}
	if actual != expected {
		return nil, errors.Wrapf(ErrSizeMismatch,
			"payload is %d bytes but shape %v of %s implies %d bytes",
			actual, shape, dt, expected)
	}

	if fp := Fingerprint(key, chunks...); fp != keyCheck {
		return nil, errors.Wrapf(ErrIntegrityMismatch,
			"declared key_check %#x but key %d and payload imply %#x",
			keyCheck, key, fp)
	}

	v := &Value{
		Shape:     append([]uint64(nil), shape...),
		DType:     dt,
		SizeCheck: sizeCheck,
		KeyCheck:  keyCheck,
		Data:      make([][]byte, len(chunks)),
	}
	for i, c := range chunks {
		v.Data[i] = append([]byte(nil), c...)
	}
	return v, nil
}

// Verify re-runs the integrity checks of an already-assembled value against
// the key it is stored under. Key tables call this on the read path to catch
// silent corruption of the underlying table.
func Verify(key uint64, v *Value) error {
	expected, err := ExpectedSize(v.Shape, v.DType)
	if err != nil {
		return errors.Wrapf(ErrInvalidShape, "stored value for key %d has an uncomputable size", key)
	}
	if n := v.NumBytes(); n != expected || v.SizeCheck != expected {
		return errors.Wrapf(ErrSizeMismatch,
			"stored value for key %d has %d payload bytes and size_check %d, expected %d",
			key, v.NumBytes(), v.SizeCheck, expected)
	}
	if fp := Fingerprint(key, v.Data...); fp != v.KeyCheck {
		return errors.Wrapf(ErrIntegrityMismatch,
			"stored value for key %d fails its key_check: declared %#x, computed %#x",
			key, v.KeyCheck, fp)
	}
	return nil
}

// New builds a valid Value for key from a flat payload, computing the
// integrity fields and splitting the payload into DefaultChunkSize chunks.
// This is the sender-side counterpart of Assemble, used by clients and
// tests.
func New(key uint64, shape []uint64, dt dtype.T, payload []byte) (*Value, error) {
	expected, err := ExpectedSize(shape, dt)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != expected {
		return nil, errors.Wrapf(ErrSizeMismatch,
			"payload is %d bytes but shape %v of %s implies %d bytes",
			len(payload), shape, dt, expected)
	}
	chunks := Split(payload, DefaultChunkSize)
	return Assemble(key, shape, dt, expected, Fingerprint(key, payload), chunks)
}

// Split cuts payload into chunks of at most chunkSize bytes, preserving
// order. An empty payload yields no chunks. chunkSize must be positive;
// non-positive values fall back to DefaultChunkSize.
func Split(payload []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if len(payload) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(payload)+chunkSize-1)/chunkSize)
	for len(payload) > chunkSize {
		chunks = append(chunks, append([]byte(nil), payload[:chunkSize]...))
		payload = payload[chunkSize:]
	}
	return append(chunks, append([]byte(nil), payload...))
}
