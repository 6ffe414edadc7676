package columnar

import (
	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// NewStringView wraps a views buffer and its variadic data buffers as a
// string view array. Every valid out-of-line view must reference bytes that
// exist; a nil validity bitmap means every slot is valid.
func NewStringView(length int, views []byte, buffers [][]byte, validity []byte) (*array.StringView, error) {
	const op = "new_string_view"
	if length < 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op, "negative length %d", length)
	}
	if len(views) != arrow.ViewHeaderTraits.BytesRequired(length) {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
			"views buffer has %d bytes, want %d for %d slots",
			len(views), arrow.ViewHeaderTraits.BytesRequired(length), length)
	}
	if validity != nil && len(validity) < ValidityBytes(length) {
		return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
			"validity bitmap has %d bytes, want %d", len(validity), ValidityBytes(length))
	}

	headers := arrow.ViewHeaderTraits.CastFromBytes(views)
	for i := range headers {
		if !bitIsValid(validity, i) {
			continue
		}
		h := &headers[i]
		if h.Len() < 0 {
			return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
				"view %d has negative length %d", i, h.Len()).WithContext("slot", i)
		}
		if h.IsInline() {
			continue
		}
		idx, off := int64(h.BufferIndex()), int64(h.BufferOffset())
		if idx < 0 || idx >= int64(len(buffers)) {
			return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
				"view %d references buffer %d of %d", i, idx, len(buffers)).WithContext("slot", i)
		}
		if off < 0 || off+int64(h.Len()) > int64(len(buffers[idx])) {
			return nil, errors.Newf(errors.ErrorTypeInvalidOffsets, op,
				"view %d range [%d, %d) exceeds buffer %d of %d bytes",
				i, off, off+int64(h.Len()), idx, len(buffers[idx])).WithContext("slot", i)
		}
	}

	bufs := make([]*memory.Buffer, 0, 2+len(buffers))
	bufs = append(bufs, validityBuffer(validity), memory.NewBufferBytes(views))
	for _, b := range buffers {
		bufs = append(bufs, memory.NewBufferBytes(b))
	}
	data := array.NewData(arrow.BinaryTypes.StringView, length, bufs, nil, countNulls(validity, length), 0)
	defer data.Release()
	return array.NewStringViewData(data), nil
}

// NewStringViewFromOptional builds an array where nil entries are null.
func NewStringViewFromOptional(mem memory.Allocator, values []*string) *array.StringView {
	b := array.NewStringViewBuilder(mem)
	defer b.Release()
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Append(*v)
	}
	return b.NewArray().(*array.StringView)
}
