// Package tensorops implements arithmetic over stored tensors: elementwise
// addition, subtraction and scaling, matrix multiplication and
// transposition, and the scalar reductions sum, mean, max and min.
//
// Only the byte-aligned numeric kinds (INT8 through INT64, FP32, FP64) are
// computable; BOOL and the sub-byte kinds have no element arithmetic and
// are rejected with ErrUnsupportedDType. Elements are widened to float64
// for the computation and narrowed back to the operand kind on the way
// out, so integer results truncate the way a conversion would and 64-bit
// integers round-trip exactly up to 2^53. Every result is a fresh value
// bound to a caller-chosen key with recomputed integrity fields.
//
// All functions are pure and safe for unsynchronized concurrent use.
package tensorops

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// Computation failures. Wrapped variants carry the offending shapes and
// kinds; branch with errors.Is.
var (
	// ErrUnsupportedDType marks element kinds with no arithmetic.
	ErrUnsupportedDType = errors.New("dtype is not computable")

	// ErrShapeMismatch marks operand shapes the operation cannot combine.
	ErrShapeMismatch = errors.New("operand shapes are incompatible")

	// ErrDTypeMismatch marks binary operations over differing element kinds.
	ErrDTypeMismatch = errors.New("operand dtypes differ")
)

// elemBytes maps the computable element kinds to their byte widths.
var elemBytes = map[dtype.T]int{
	dtype.INT8:  1,
	dtype.INT16: 2,
	dtype.INT32: 4,
	dtype.INT64: 8,
	dtype.FP32:  4,
	dtype.FP64:  8,
}

// Computable reports whether tensors of kind dt support arithmetic.
func Computable(dt dtype.T) bool {
	_, ok := elemBytes[dt]
	return ok
}

// Add returns the elementwise sum of a and b, bound to key. The operands
// must share shape and dtype.
func Add(key uint64, a, b *tensor.Value) (*tensor.Value, error) {
	return elementwise(key, a, b, func(x, y float64) float64 { return x + y })
}

// Subtract returns the elementwise difference a - b, bound to key. The
// operands must share shape and dtype.
func Subtract(key uint64, a, b *tensor.Value) (*tensor.Value, error) {
	return elementwise(key, a, b, func(x, y float64) float64 { return x - y })
}

// Multiply returns the matrix product of a and b, bound to key. Both
// operands must be matrices of the same dtype with a's column count equal
// to b's row count; the result has shape [rows(a), cols(b)].
func Multiply(key uint64, a, b *tensor.Value) (*tensor.Value, error) {
	if a.DType != b.DType {
		return nil, errors.Wrapf(ErrDTypeMismatch, "%s and %s", a.DType, b.DType)
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"multiplication needs matrices, got shapes %v and %v", a.Shape, b.Shape)
	}
	if a.Shape[1] != b.Shape[0] {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"cannot multiply %dx%d by %dx%d", a.Shape[0], a.Shape[1], b.Shape[0], b.Shape[1])
	}
	ae, err := elemsOf(a)
	if err != nil {
		return nil, err
	}
	be, err := elemsOf(b)
	if err != nil {
		return nil, err
	}

	m, k, n := int(a.Shape[0]), int(a.Shape[1]), int(b.Shape[1])
	out := make([]float64, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var s float64
			for p := 0; p < k; p++ {
				s += ae[i*k+p] * be[p*n+j]
			}
			out[i*n+j] = s
		}
	}
	return build(key, []uint64{uint64(m), uint64(n)}, a.DType, out)
}

// Transpose returns the transposed matrix, bound to key. The operand must
// be two-dimensional.
func Transpose(key uint64, a *tensor.Value) (*tensor.Value, error) {
	if len(a.Shape) != 2 {
		return nil, errors.Wrapf(ErrShapeMismatch, "transposition needs a matrix, got shape %v", a.Shape)
	}
	ae, err := elemsOf(a)
	if err != nil {
		return nil, err
	}

	rows, cols := int(a.Shape[0]), int(a.Shape[1])
	out := make([]float64, len(ae))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = ae[i*cols+j]
		}
	}
	return build(key, []uint64{uint64(cols), uint64(rows)}, a.DType, out)
}

// Scale returns a with every element multiplied by factor, bound to key.
func Scale(key uint64, a *tensor.Value, factor float64) (*tensor.Value, error) {
	ae, err := elemsOf(a)
	if err != nil {
		return nil, err
	}
	for i := range ae {
		ae[i] *= factor
	}
	return build(key, append([]uint64(nil), a.Shape...), a.DType, ae)
}

// Sum returns the sum of all elements. An empty tensor sums to zero.
func Sum(a *tensor.Value) (float64, error) {
	ae, err := elemsOf(a)
	if err != nil {
		return 0, err
	}
	var s float64
	for _, x := range ae {
		s += x
	}
	return s, nil
}

// Mean returns the arithmetic mean of all elements, or zero for an empty
// tensor.
func Mean(a *tensor.Value) (float64, error) {
	ae, err := elemsOf(a)
	if err != nil {
		return 0, err
	}
	if len(ae) == 0 {
		return 0, nil
	}
	var s float64
	for _, x := range ae {
		s += x
	}
	return s / float64(len(ae)), nil
}

// Max returns the largest element, or negative infinity for an empty
// tensor.
func Max(a *tensor.Value) (float64, error) {
	ae, err := elemsOf(a)
	if err != nil {
		return 0, err
	}
	max := math.Inf(-1)
	for _, x := range ae {
		max = math.Max(max, x)
	}
	return max, nil
}

// Min returns the smallest element, or positive infinity for an empty
// tensor.
func Min(a *tensor.Value) (float64, error) {
	ae, err := elemsOf(a)
	if err != nil {
		return 0, err
	}
	min := math.Inf(1)
	for _, x := range ae {
		min = math.Min(min, x)
	}
	return min, nil
}

// Identity returns the n-by-n identity matrix of kind dt, bound to key.
func Identity(key, n uint64, dt dtype.T) (*tensor.Value, error) {
	elems := make([]float64, n*n)
	for i := uint64(0); i < n; i++ {
		elems[i*n+i] = 1
	}
	return build(key, []uint64{n, n}, dt, elems)
}

// Zeros returns a rows-by-cols matrix of zeros of kind dt, bound to key.
func Zeros(key, rows, cols uint64, dt dtype.T) (*tensor.Value, error) {
	return build(key, []uint64{rows, cols}, dt, make([]float64, rows*cols))
}

// Ones returns a rows-by-cols matrix of ones of kind dt, bound to key.
func Ones(key, rows, cols uint64, dt dtype.T) (*tensor.Value, error) {
	elems := make([]float64, rows*cols)
	for i := range elems {
		elems[i] = 1
	}
	return build(key, []uint64{rows, cols}, dt, elems)
}

// elementwise applies op over two shape- and dtype-matched operands.
func elementwise(key uint64, a, b *tensor.Value, op func(x, y float64) float64) (*tensor.Value, error) {
	if a.DType != b.DType {
		return nil, errors.Wrapf(ErrDTypeMismatch, "%s and %s", a.DType, b.DType)
	}
	if !sameShape(a, b) {
		return nil, errors.Wrapf(ErrShapeMismatch, "shapes %v and %v must match", a.Shape, b.Shape)
	}
	ae, err := elemsOf(a)
	if err != nil {
		return nil, err
	}
	be, err := elemsOf(b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ae))
	for i := range out {
		out[i] = op(ae[i], be[i])
	}
	return build(key, append([]uint64(nil), a.Shape...), a.DType, out)
}

func sameShape(a, b *tensor.Value) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// elemsOf decodes the flat, row-major element sequence of a computable
// tensor.
func elemsOf(v *tensor.Value) ([]float64, error) {
	if !Computable(v.DType) {
		return nil, errors.Wrapf(ErrUnsupportedDType, "%s", v.DType)
	}
	payload := v.Payload()
	elems := make([]float64, v.Elems())
	for e := range elems {
		elems[e] = loadElem(payload, v.DType, e)
	}
	return elems, nil
}

// build encodes elems into a fresh value of the given shape and kind,
// bound to key with recomputed integrity fields.
func build(key uint64, shape []uint64, dt dtype.T, elems []float64) (*tensor.Value, error) {
	w, ok := elemBytes[dt]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedDType, "%s", dt)
	}
	payload := make([]byte, len(elems)*w)
	for e, x := range elems {
		storeElem(payload, dt, e, x)
	}
	return tensor.New(key, shape, dt, payload)
}

// loadElem reads element e of a little-endian row-major payload.
func loadElem(payload []byte, dt dtype.T, e int) float64 {
	switch dt {
	case dtype.INT8:
		return float64(int8(payload[e]))
	case dtype.INT16:
		return float64(int16(binary.LittleEndian.Uint16(payload[e*2:])))
	case dtype.INT32:
		return float64(int32(binary.LittleEndian.Uint32(payload[e*4:])))
	case dtype.INT64:
		return float64(int64(binary.LittleEndian.Uint64(payload[e*8:])))
	case dtype.FP32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[e*4:])))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(payload[e*8:]))
	}
}

// storeElem writes element e of a little-endian row-major payload,
// narrowing x to the element kind.
func storeElem(payload []byte, dt dtype.T, e int, x float64) {
	switch dt {
	case dtype.INT8:
		payload[e] = byte(int8(x))
	case dtype.INT16:
		binary.LittleEndian.PutUint16(payload[e*2:], uint16(int16(x)))
	case dtype.INT32:
		binary.LittleEndian.PutUint32(payload[e*4:], uint32(int32(x)))
	case dtype.INT64:
		binary.LittleEndian.PutUint64(payload[e*8:], uint64(int64(x)))
	case dtype.FP32:
		binary.LittleEndian.PutUint32(payload[e*4:], math.Float32bits(float32(x)))
	default:
		binary.LittleEndian.PutUint64(payload[e*8:], math.Float64bits(x))
	}
}
