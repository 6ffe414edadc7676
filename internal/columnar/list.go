package columnar

import (
	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// NewLargeList builds a large list whose element i is the child window
// [offsets[i], offsets[i+1]). The offsets are kept exactly as given: the first
// window may start anywhere in the child and the child may hold values outside
// every window. The logical length is len(offsets)-1 and a nil validity bitmap
// means every element is valid.
func NewLargeList(field arrow.Field, offsets []int64, values arrow.Array, validity []byte) (*array.LargeList, error) {
	const op = "new_large_list"
	if values == nil {
		return nil, errors.NewInvalidOffsetsError(op, "nil child array")
	}
	if !arrow.TypeEqual(values.DataType(), field.Type) {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
			"child type %s does not match element field %s", values.DataType(), field)
	}
	if len(offsets) == 0 {
		return nil, errors.NewInvalidOffsetsError(op, "offsets must hold at least one entry")
	}
	n := len(offsets) - 1
	if offsets[0] < 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op, "negative first offset %d", offsets[0])
	}
	for i := 0; i < n; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
				"offsets decrease at %d: %d > %d", i, offsets[i], offsets[i+1]).WithContext("index", i)
		}
	}
	if last := offsets[n]; last > int64(values.Len()) {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
			"last offset %d exceeds child length %d", last, values.Len())
	}
	if validity != nil && len(validity) < ValidityBytes(n) {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
			"validity bitmap has %d bytes, want %d", len(validity), ValidityBytes(n))
	}

	bufs := []*memory.Buffer{
		validityBuffer(validity),
		memory.NewBufferBytes(arrow.Int64Traits.CastToBytes(offsets)),
	}
	data := array.NewData(arrow.LargeListOfField(field), n, bufs,
		[]arrow.ArrayData{values.Data()}, countNulls(validity, n), 0)
	defer data.Release()
	return array.NewLargeListData(data), nil
}

// ListOffsets returns the n+1 offsets of l's logical elements as absolute
// positions in l.ListValues(). Nothing is re-based.
func ListOffsets(l *array.LargeList) []int64 {
	n := l.Len()
	out := make([]int64, n+1)
	if n == 0 {
		raw, off := l.Offsets(), l.Data().Offset()
		if off < len(raw) {
			out[0] = raw[off]
		}
		return out
	}
	for i := 0; i < n; i++ {
		start, end := l.ValueOffsets(i)
		if i == 0 {
			out[0] = start
		}
		out[i+1] = end
	}
	return out
}

// ListStrings materializes element i of a list of string views. Null strings
// are nil; false means the element itself is null. It panics when the child is
// not a string view array.
func ListStrings(l *array.LargeList, i int) ([]*string, bool) {
	if l.IsNull(i) {
		return nil, false
	}
	sv := l.ListValues().(*array.StringView)
	start, end := l.ValueOffsets(i)
	out := make([]*string, 0, end-start)
	for j := int(start); j < int(end); j++ {
		if sv.IsNull(j) {
			out = append(out, nil)
			continue
		}
		v := sv.Value(j)
		out = append(out, &v)
	}
	return out, true
}
