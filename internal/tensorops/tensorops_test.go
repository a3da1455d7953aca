package tensorops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// mat builds a matrix of the given kind from float64 elements.
func mat(t *testing.T, key uint64, rows, cols uint64, dt dtype.T, elems ...float64) *tensor.Value {
	t.Helper()
	v, err := build(key, []uint64{rows, cols}, dt, elems)
	require.NoError(t, err)
	return v
}

// elems decodes a value back to its flat element sequence.
func elems(t *testing.T, v *tensor.Value) []float64 {
	t.Helper()
	got, err := elemsOf(v)
	require.NoError(t, err)
	return got
}

func TestComputable(t *testing.T) {
	for _, dt := range []dtype.T{dtype.INT8, dtype.INT16, dtype.INT32, dtype.INT64,
		dtype.FP32, dtype.FP64} {
		require.True(t, Computable(dt), "%s", dt)
	}
	for _, dt := range []dtype.T{dtype.BOOL, dtype.FP16, dtype.BF16, dtype.FP8,
		dtype.INT4, dtype.INT1} {
		require.False(t, Computable(dt), "%s", dt)
	}
}

func TestAdd(t *testing.T) {
	a := mat(t, 1, 2, 2, dtype.FP64, 1, 2, 3, 4)
	b := mat(t, 2, 2, 2, dtype.FP64, 5, 6, 7, 8)

	t.Run("elementwise sum", func(t *testing.T) {
		out, err := Add(9, a, b)
		require.NoError(t, err)
		require.Equal(t, []uint64{2, 2}, out.Shape)
		require.Equal(t, []float64{6, 8, 10, 12}, elems(t, out))
		require.NoError(t, tensor.Verify(9, out))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		c := mat(t, 3, 1, 4, dtype.FP64, 1, 2, 3, 4)
		_, err := Add(9, a, c)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("dtype mismatch", func(t *testing.T) {
		c := mat(t, 3, 2, 2, dtype.INT32, 1, 2, 3, 4)
		_, err := Add(9, a, c)
		require.ErrorIs(t, err, ErrDTypeMismatch)
	})
}

func TestSubtract(t *testing.T) {
	a := mat(t, 1, 2, 2, dtype.INT32, 10, 20, 30, 40)
	b := mat(t, 2, 2, 2, dtype.INT32, 1, 2, 3, 45)

	out, err := Subtract(9, a, b)
	require.NoError(t, err)
	require.Equal(t, []float64{9, 18, 27, -5}, elems(t, out))
	require.Equal(t, dtype.INT32, out.DType)
}

func TestMultiply(t *testing.T) {
	t.Run("square product", func(t *testing.T) {
		a := mat(t, 1, 2, 2, dtype.FP64, 1, 2, 3, 4)
		b := mat(t, 2, 2, 2, dtype.FP64, 5, 6, 7, 8)
		out, err := Multiply(9, a, b)
		require.NoError(t, err)
		require.Equal(t, []float64{19, 22, 43, 50}, elems(t, out))
	})

	t.Run("rectangular product", func(t *testing.T) {
		a := mat(t, 1, 2, 3, dtype.FP64, 1, 2, 3, 4, 5, 6)
		b := mat(t, 2, 3, 2, dtype.FP64, 7, 8, 9, 10, 11, 12)
		out, err := Multiply(9, a, b)
		require.NoError(t, err)
		require.Equal(t, []uint64{2, 2}, out.Shape)
		require.Equal(t, []float64{58, 64, 139, 154}, elems(t, out))
	})

	t.Run("incompatible dimensions", func(t *testing.T) {
		a := mat(t, 1, 2, 3, dtype.FP64, 1, 2, 3, 4, 5, 6)
		b := mat(t, 2, 2, 2, dtype.FP64, 1, 2, 3, 4)
		_, err := Multiply(9, a, b)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("not a matrix", func(t *testing.T) {
		vec, err := build(1, []uint64{4}, dtype.FP64, []float64{1, 2, 3, 4})
		require.NoError(t, err)
		sq := mat(t, 2, 2, 2, dtype.FP64, 1, 2, 3, 4)
		_, err = Multiply(9, vec, sq)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestTranspose(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		a := mat(t, 1, 2, 2, dtype.FP64, 1, 2, 3, 4)
		out, err := Transpose(9, a)
		require.NoError(t, err)
		require.Equal(t, []uint64{2, 2}, out.Shape)
		require.Equal(t, []float64{1, 3, 2, 4}, elems(t, out))
	})

	t.Run("rectangular swaps the shape", func(t *testing.T) {
		a := mat(t, 1, 2, 3, dtype.INT16, 1, 2, 3, 4, 5, 6)
		out, err := Transpose(9, a)
		require.NoError(t, err)
		require.Equal(t, []uint64{3, 2}, out.Shape)
		require.Equal(t, []float64{1, 4, 2, 5, 3, 6}, elems(t, out))
	})

	t.Run("not a matrix", func(t *testing.T) {
		vec, err := build(1, []uint64{4}, dtype.FP64, []float64{1, 2, 3, 4})
		require.NoError(t, err)
		_, err = Transpose(9, vec)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestScale(t *testing.T) {
	t.Run("float scaling", func(t *testing.T) {
		a := mat(t, 1, 2, 2, dtype.FP64, 1, -2, 3, -4)
		out, err := Scale(9, a, 2.5)
		require.NoError(t, err)
		require.Equal(t, []float64{2.5, -5, 7.5, -10}, elems(t, out))
	})

	t.Run("integer results truncate", func(t *testing.T) {
		a := mat(t, 1, 2, 2, dtype.INT32, 1, 2, 3, 4)
		out, err := Scale(9, a, 0.5)
		require.NoError(t, err)
		require.Equal(t, []float64{0, 1, 1, 2}, elems(t, out))
		require.Equal(t, dtype.INT32, out.DType)
	})
}

func TestReductions(t *testing.T) {
	a := mat(t, 1, 2, 3, dtype.FP64, 1, -2, 3, 4, 5, 6)

	sum, err := Sum(a)
	require.NoError(t, err)
	require.Equal(t, 17.0, sum)

	mean, err := Mean(a)
	require.NoError(t, err)
	require.InDelta(t, 17.0/6.0, mean, 1e-12)

	max, err := Max(a)
	require.NoError(t, err)
	require.Equal(t, 6.0, max)

	min, err := Min(a)
	require.NoError(t, err)
	require.Equal(t, -2.0, min)
}

func TestReductionsOnEmpty(t *testing.T) {
	empty, err := Zeros(1, 0, 3, dtype.FP64)
	require.NoError(t, err)

	sum, err := Sum(empty)
	require.NoError(t, err)
	require.Zero(t, sum)

	mean, err := Mean(empty)
	require.NoError(t, err)
	require.Zero(t, mean)

	max, err := Max(empty)
	require.NoError(t, err)
	require.True(t, math.IsInf(max, -1))

	min, err := Min(empty)
	require.NoError(t, err)
	require.True(t, math.IsInf(min, 1))
}

func TestConstructors(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		id, err := Identity(1, 3, dtype.FP64)
		require.NoError(t, err)
		require.Equal(t, []uint64{3, 3}, id.Shape)
		require.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, elems(t, id))
	})

	t.Run("identity is multiplicative unit", func(t *testing.T) {
		a := mat(t, 1, 2, 2, dtype.FP64, 1, 2, 3, 4)
		id, err := Identity(2, 2, dtype.FP64)
		require.NoError(t, err)
		out, err := Multiply(9, a, id)
		require.NoError(t, err)
		require.Equal(t, elems(t, a), elems(t, out))
	})

	t.Run("zeros and ones", func(t *testing.T) {
		z, err := Zeros(1, 2, 3, dtype.INT8)
		require.NoError(t, err)
		require.Equal(t, []float64{0, 0, 0, 0, 0, 0}, elems(t, z))

		o, err := Ones(1, 2, 3, dtype.INT8)
		require.NoError(t, err)
		require.Equal(t, []float64{1, 1, 1, 1, 1, 1}, elems(t, o))
	})
}

func TestUnsupportedDType(t *testing.T) {
	b, err := tensor.New(1, []uint64{2, 4}, dtype.BOOL, []byte{0xA5})
	require.NoError(t, err)

	_, err = Sum(b)
	require.ErrorIs(t, err, ErrUnsupportedDType)
	_, err = Transpose(9, b)
	require.ErrorIs(t, err, ErrUnsupportedDType)
	_, err = Add(9, b, b)
	require.ErrorIs(t, err, ErrUnsupportedDType)
	_, err = Identity(1, 2, dtype.FP16)
	require.ErrorIs(t, err, ErrUnsupportedDType)
}

// TestResultsRoundTripThroughCodec checks that computed values satisfy the
// same integrity contract as stored ones.
func TestResultsRoundTripThroughCodec(t *testing.T) {
	a := mat(t, 1, 2, 2, dtype.INT64, -1, 2, -3, 4)
	out, err := Scale(42, a, 3)
	require.NoError(t, err)
	require.NoError(t, tensor.Verify(42, out))
	require.Equal(t, []float64{-3, 6, -9, 12}, elems(t, out))

	back, err := tensor.Assemble(42, out.Shape, out.DType, out.SizeCheck, out.KeyCheck, out.Data)
	require.NoError(t, err)
	require.True(t, out.Equal(back))
}
