package colfile

import (
	"encoding/binary"
	"fmt"

	"github.com/23skdu/stratum/internal/columnar"
	"github.com/23skdu/stratum/internal/errors"
	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Array encoding inside a data block payload, columns in schema order:
//
//	u8   type tag
//	u64  length
//	u8   has validity, then u64 byte count and the bitmap when set
//	string_view: u64 views byte count, views, u32 buffer count, (u64 n, bytes)...
//	large_list:  (length+1) i64 offsets, then the child array
//
// Buffers are written as the arrow array data holds them. List offsets are
// not re-based and the child is written whole, padding included.
const (
	tagStringView uint8 = 1
	tagLargeList  uint8 = 2

	viewSize = 16
)

func typeTag(dt arrow.DataType) (uint8, bool) {
	switch dt.ID() {
	case arrow.STRING_VIEW:
		return tagStringView, true
	case arrow.LARGE_LIST:
		return tagLargeList, true
	}
	return 0, false
}

func encodeBatch(b *record.Batch) ([]byte, error) {
	var buf []byte
	var err error
	for i := 0; i < b.NumCols(); i++ {
		buf, err = appendArray(buf, b.Column(i))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendArray(buf []byte, arr arrow.Array) ([]byte, error) {
	tag, ok := typeTag(arr.DataType())
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "encode_array", "unsupported array type %s", arr.DataType())
	}
	buf = append(buf, tag)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(arr.Len()))
	buf = appendValidity(buf, columnar.Validity(arr))

	switch a := arr.(type) {
	case *array.StringView:
		bufs := a.Data().Buffers()
		var views []byte
		if n := a.Len(); n > 0 && len(bufs) > 1 && bufs[1] != nil {
			off := a.Data().Offset()
			views = bufs[1].Bytes()[off*viewSize : (off+n)*viewSize]
		}
		buf = appendBytes(buf, views)
		var data []*memory.Buffer
		if len(bufs) > 2 {
			data = bufs[2:]
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
		for _, d := range data {
			var b []byte
			if d != nil {
				b = d.Bytes()
			}
			buf = appendBytes(buf, b)
		}
		return buf, nil
	case *array.LargeList:
		for _, off := range columnar.ListOffsets(a) {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(off))
		}
		return appendArray(buf, a.ListValues())
	default:
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "encode_array", "unsupported array %T", arr)
	}
}

func appendValidity(buf, validity []byte) []byte {
	if validity == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendBytes(buf, validity)
}

func appendBytes(buf, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(data)))
	return append(buf, data...)
}

// decoder walks a block payload. Slices it returns alias the payload.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) take(n uint64) ([]byte, error) {
	if n > uint64(d.remaining()) {
		return nil, fmt.Errorf("need %d bytes at payload offset %d, %d left", n, d.pos, d.remaining())
	}
	out := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return out, nil
}

func (d *decoder) u8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) lengthPrefixed() ([]byte, error) {
	n, err := d.u64()
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

func (d *decoder) validity() ([]byte, error) {
	has, err := d.u8()
	if err != nil {
		return nil, err
	}
	switch has {
	case 0:
		return nil, nil
	case 1:
		return d.lengthPrefixed()
	default:
		return nil, fmt.Errorf("invalid validity flag %d", has)
	}
}

func decodeBatch(schema *arrow.Schema, payload []byte) (*record.Batch, error) {
	const op = "decode_block"
	d := &decoder{buf: payload}
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i := range cols {
		f := schema.Field(i)
		arr, err := d.array(f.Type)
		if err != nil {
			return nil, errors.WrapFormatError(err, op, fmt.Sprintf("column %q", f.Name)).WithContext("column", i)
		}
		cols[i] = arr
	}
	if d.remaining() != 0 {
		return nil, errors.Newf(errors.ErrorTypeFormat, op, "%d trailing bytes after last column", d.remaining())
	}
	b, err := record.New(schema, cols)
	if err != nil {
		return nil, errors.WrapFormatError(err, op, "decoded columns do not form a batch")
	}
	return b, nil
}

func (d *decoder) array(dt arrow.DataType) (arrow.Array, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	if want, ok := typeTag(dt); !ok || tag != want {
		return nil, fmt.Errorf("type tag %d, schema declares %s", tag, dt)
	}
	length, err := d.u64()
	if err != nil {
		return nil, err
	}
	validity, err := d.validity()
	if err != nil {
		return nil, err
	}

	switch t := dt.(type) {
	case *arrow.StringViewType:
		return d.stringView(length, validity)
	case *arrow.LargeListType:
		return d.largeList(t, length, validity)
	default:
		return nil, fmt.Errorf("unsupported type %s", dt)
	}
}

func (d *decoder) stringView(length uint64, validity []byte) (arrow.Array, error) {
	views, err := d.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	nbuf, err := d.u32()
	if err != nil {
		return nil, err
	}
	if uint64(nbuf)*8 > uint64(d.remaining()) {
		return nil, fmt.Errorf("%d data buffers cannot fit in %d bytes", nbuf, d.remaining())
	}
	var buffers [][]byte
	if nbuf > 0 {
		buffers = make([][]byte, nbuf)
	}
	for i := range buffers {
		if buffers[i], err = d.lengthPrefixed(); err != nil {
			return nil, err
		}
	}
	if length > uint64(len(views))/viewSize {
		return nil, fmt.Errorf("length %d exceeds views buffer", length)
	}
	// view headers are cast in place, so give them their own aligned backing
	return columnar.NewStringView(int(length), append([]byte(nil), views...), buffers, validity)
}

func (d *decoder) largeList(dt *arrow.LargeListType, length uint64, validity []byte) (arrow.Array, error) {
	if length >= uint64(d.remaining())/8 {
		return nil, fmt.Errorf("%d offsets cannot fit in %d bytes", length+1, d.remaining())
	}
	raw, err := d.take((length + 1) * 8)
	if err != nil {
		return nil, err
	}
	offsets := make([]int64, length+1)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	elem := dt.ElemField()
	child, err := d.array(elem.Type)
	if err != nil {
		return nil, fmt.Errorf("list child: %w", err)
	}
	defer child.Release()
	return columnar.NewLargeList(elem, offsets, child, validity)
}
