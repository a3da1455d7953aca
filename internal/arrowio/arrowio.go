// Package arrowio converts stored tensors to and from Arrow record
// batches, so matrix-shaped data can be handed to Arrow-speaking tools
// without reinterpreting raw payload bytes by hand.
//
// Only two-dimensional tensors of element kinds Arrow represents natively
// (INT8 through INT64, FP32, FP64 and BOOL) convert; sub-byte and reduced
// float kinds have no Arrow physical type and are rejected. A tensor of
// shape [rows, cols] becomes a record of cols columns named c0..cN, one
// row per tensor row. Payload bytes are row-major with little-endian
// multi-byte elements, matching the engine's storage convention; BOOL
// payloads are bit-packed row-major, LSB first.
package arrowio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/cockroachdb/errors"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// Conversion failures.
var (
	// ErrUnsupportedDType marks element kinds with no Arrow physical type.
	ErrUnsupportedDType = errors.New("dtype has no arrow representation")

	// ErrBadShape marks tensors that are not two-dimensional and records
	// whose columns disagree.
	ErrBadShape = errors.New("not convertible to a matrix")
)

// arrowTypes maps the convertible element kinds to their Arrow data types.
var arrowTypes = map[dtype.T]arrow.DataType{
	dtype.INT8:  arrow.PrimitiveTypes.Int8,
	dtype.INT16: arrow.PrimitiveTypes.Int16,
	dtype.INT32: arrow.PrimitiveTypes.Int32,
	dtype.INT64: arrow.PrimitiveTypes.Int64,
	dtype.FP32:  arrow.PrimitiveTypes.Float32,
	dtype.FP64:  arrow.PrimitiveTypes.Float64,
	dtype.BOOL:  arrow.FixedWidthTypes.Boolean,
}

// Supported reports whether tensors of kind dt convert to Arrow.
func Supported(dt dtype.T) bool {
	_, ok := arrowTypes[dt]
	return ok
}

// ToRecord converts a two-dimensional tensor into an Arrow record with one
// column per matrix column. The caller owns the returned record and must
// Release it.
func ToRecord(v *tensor.Value) (arrow.Record, error) {
	at, ok := arrowTypes[v.DType]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedDType, "%s", v.DType)
	}
	if len(v.Shape) != 2 {
		return nil, errors.Wrapf(ErrBadShape, "shape %v has %d dimensions, need 2", v.Shape, len(v.Shape))
	}
	rows, cols := int(v.Shape[0]), int(v.Shape[1])

	fields := make([]arrow.Field, cols)
	for j := range fields {
		fields[j] = arrow.Field{Name: fmt.Sprintf("c%d", j), Type: at}
	}
	schema := arrow.NewSchema(fields, nil)

	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()

	payload := v.Payload()
	for j := 0; j < cols; j++ {
		if err := appendColumn(bld.Field(j), v.DType, payload, rows, cols, j); err != nil {
			return nil, err
		}
	}
	return bld.NewRecord(), nil
}

// appendColumn appends column j of the row-major payload to b.
func appendColumn(b array.Builder, dt dtype.T, payload []byte, rows, cols, j int) error {
	for i := 0; i < rows; i++ {
		e := i*cols + j
		switch fb := b.(type) {
		case *array.Int8Builder:
			fb.Append(int8(payload[e]))
		case *array.Int16Builder:
			fb.Append(int16(binary.LittleEndian.Uint16(payload[e*2:])))
		case *array.Int32Builder:
			fb.Append(int32(binary.LittleEndian.Uint32(payload[e*4:])))
		case *array.Int64Builder:
			fb.Append(int64(binary.LittleEndian.Uint64(payload[e*8:])))
		case *array.Float32Builder:
			fb.Append(math.Float32frombits(binary.LittleEndian.Uint32(payload[e*4:])))
		case *array.Float64Builder:
			fb.Append(math.Float64frombits(binary.LittleEndian.Uint64(payload[e*8:])))
		case *array.BooleanBuilder:
			fb.Append(payload[e/8]>>(e%8)&1 == 1)
		default:
			return errors.Wrapf(ErrUnsupportedDType, "%s", dt)
		}
	}
	return nil
}

// FromRecord converts an Arrow record back into a tensor bound to key. All
// columns must share one supported type and carry no nulls; the result has
// shape [rows, cols] with freshly computed integrity fields.
func FromRecord(key uint64, rec arrow.Record) (*tensor.Value, error) {
	cols := int(rec.NumCols())
	rows := int(rec.NumRows())
	if cols == 0 {
		return nil, errors.Wrap(ErrBadShape, "record has no columns")
	}

	dt, err := kindOf(rec.Schema().Field(0).Type)
	if err != nil {
		return nil, err
	}
	for j := 1; j < cols; j++ {
		other, err := kindOf(rec.Schema().Field(j).Type)
		if err != nil {
			return nil, err
		}
		if other != dt {
			return nil, errors.Wrapf(ErrBadShape,
				"column %d is %s, column 0 is %s", j, other, dt)
		}
	}

	shape := []uint64{uint64(rows), uint64(cols)}
	size, err := tensor.ExpectedSize(shape, dt)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, size)
	for j := 0; j < cols; j++ {
		col := rec.Column(j)
		if col.NullN() != 0 {
			return nil, errors.Wrapf(ErrBadShape, "column %d has nulls, tensors cannot", j)
		}
		if err := readColumn(col, payload, rows, cols, j); err != nil {
			return nil, err
		}
	}
	return tensor.New(key, shape, dt, payload)
}

// kindOf maps an Arrow data type back to an element kind.
func kindOf(at arrow.DataType) (dtype.T, error) {
	for dt, candidate := range arrowTypes {
		if arrow.TypeEqual(at, candidate) {
			return dt, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedDType, "arrow type %s", at)
}

// readColumn writes column j of rec into the row-major payload.
func readColumn(col arrow.Array, payload []byte, rows, cols, j int) error {
	for i := 0; i < rows; i++ {
		e := i*cols + j
		switch c := col.(type) {
		case *array.Int8:
			payload[e] = byte(c.Value(i))
		case *array.Int16:
			binary.LittleEndian.PutUint16(payload[e*2:], uint16(c.Value(i)))
		case *array.Int32:
			binary.LittleEndian.PutUint32(payload[e*4:], uint32(c.Value(i)))
		case *array.Int64:
			binary.LittleEndian.PutUint64(payload[e*8:], uint64(c.Value(i)))
		case *array.Float32:
			binary.LittleEndian.PutUint32(payload[e*4:], math.Float32bits(c.Value(i)))
		case *array.Float64:
			binary.LittleEndian.PutUint64(payload[e*8:], math.Float64bits(c.Value(i)))
		case *array.Boolean:
			if c.Value(i) {
				payload[e/8] |= 1 << (e % 8)
			}
		default:
			return errors.Wrapf(ErrUnsupportedDType, "arrow array %T", col)
		}
	}
	return nil
}
