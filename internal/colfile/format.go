package colfile

import (
	"bytes"
	"encoding/binary"

	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

// File layout, all integers little-endian:
//
//	magic   "STRATUM1"
//	block   header(32) payload        schema block, kind 1
//	block   header(32) payload        data blocks, kind 2, one per batch
//	...
//	footer  JSON: version, schema, block extents
//	trailer footer length u64 | xxhash64(footer) u64 | magic
//
// Block header:
//
//	[0:8]   xxhash64 of the payload
//	[8:12]  kind
//	[12:16] format version
//	[16:24] row count
//	[24:32] payload length
const (
	FormatVersion = 1

	headerSize  = 32
	trailerSize = 24

	kindSchema uint32 = 1
	kindData   uint32 = 2
)

var magic = [8]byte{'S', 'T', 'R', 'A', 'T', 'U', 'M', '1'}

// BlockInfo is the footer entry for one data block. Offset and Length cover
// the block header and payload.
type BlockInfo struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
	Rows   int64 `json:"rows"`
}

type blockHeader struct {
	checksum   uint64
	kind       uint32
	version    uint32
	rows       uint64
	payloadLen uint64
}

func newBlockHeader(kind uint32, rows int, payload []byte) blockHeader {
	return blockHeader{
		checksum:   xxhash.Sum64(payload),
		kind:       kind,
		version:    FormatVersion,
		rows:       uint64(rows),
		payloadLen: uint64(len(payload)),
	}
}

func (h blockHeader) marshal() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.checksum)
	binary.LittleEndian.PutUint32(buf[8:12], h.kind)
	binary.LittleEndian.PutUint32(buf[12:16], h.version)
	binary.LittleEndian.PutUint64(buf[16:24], h.rows)
	binary.LittleEndian.PutUint64(buf[24:32], h.payloadLen)
	return buf
}

func parseBlockHeader(buf []byte) blockHeader {
	return blockHeader{
		checksum:   binary.LittleEndian.Uint64(buf[0:8]),
		kind:       binary.LittleEndian.Uint32(buf[8:12]),
		version:    binary.LittleEndian.Uint32(buf[12:16]),
		rows:       binary.LittleEndian.Uint64(buf[16:24]),
		payloadLen: binary.LittleEndian.Uint64(buf[24:32]),
	}
}

// verify checks a block read from disk against its header and expected kind.
func (h blockHeader) verify(op string, kind uint32, payload []byte) error {
	if h.kind != kind {
		return errors.Newf(errors.ErrorTypeFormat, op, "block kind %d, want %d", h.kind, kind)
	}
	if h.version != FormatVersion {
		return errors.Newf(errors.ErrorTypeFormat, op, "unsupported block version %d", h.version)
	}
	if h.payloadLen != uint64(len(payload)) {
		return errors.Newf(errors.ErrorTypeFormat, op,
			"payload length %d does not match block extent %d", h.payloadLen, len(payload))
	}
	if sum := xxhash.Sum64(payload); sum != h.checksum {
		return errors.Newf(errors.ErrorTypeFormat, op, "checksum mismatch: expected %x, got %x", h.checksum, sum)
	}
	return nil
}

type trailer struct {
	footerLen uint64
	checksum  uint64
}

func (t trailer) marshal() []byte {
	buf := make([]byte, trailerSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.footerLen)
	binary.LittleEndian.PutUint64(buf[8:16], t.checksum)
	copy(buf[16:24], magic[:])
	return buf
}

func parseTrailer(buf []byte) (trailer, error) {
	if !bytes.Equal(buf[16:24], magic[:]) {
		return trailer{}, errors.NewFormatError("read_trailer", "missing trailing magic, file truncated or not a stratum file")
	}
	return trailer{
		footerLen: binary.LittleEndian.Uint64(buf[0:8]),
		checksum:  binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

type fieldJSON struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Nullable bool       `json:"nullable"`
	Elem     *fieldJSON `json:"elem,omitempty"`
}

type schemaJSON struct {
	Fields []fieldJSON `json:"fields"`
}

type footerJSON struct {
	Version int         `json:"version"`
	Schema  schemaJSON  `json:"schema"`
	Blocks  []BlockInfo `json:"blocks"`
}

const (
	typeStringView = "string_view"
	typeLargeList  = "large_list"
)

func toFieldJSON(f arrow.Field) (fieldJSON, error) {
	out := fieldJSON{Name: f.Name, Nullable: f.Nullable}
	switch t := f.Type.(type) {
	case *arrow.StringViewType:
		out.Type = typeStringView
	case *arrow.LargeListType:
		out.Type = typeLargeList
		e, err := toFieldJSON(t.ElemField())
		if err != nil {
			return fieldJSON{}, err
		}
		out.Elem = &e
	default:
		return fieldJSON{}, errors.Newf(errors.ErrorTypeSchemaMismatch, "encode_schema",
			"field %q has unsupported type %s", f.Name, f.Type)
	}
	return out, nil
}

func fromFieldJSON(f fieldJSON) (arrow.Field, error) {
	out := arrow.Field{Name: f.Name, Nullable: f.Nullable}
	switch f.Type {
	case typeStringView:
		out.Type = arrow.BinaryTypes.StringView
	case typeLargeList:
		if f.Elem == nil {
			return arrow.Field{}, errors.Newf(errors.ErrorTypeFormat, "decode_schema", "list field %q has no element", f.Name)
		}
		elem, err := fromFieldJSON(*f.Elem)
		if err != nil {
			return arrow.Field{}, err
		}
		out.Type = arrow.LargeListOfField(elem)
	default:
		return arrow.Field{}, errors.Newf(errors.ErrorTypeFormat, "decode_schema", "unknown type %q for field %q", f.Type, f.Name)
	}
	return out, nil
}

func toSchemaJSON(s *arrow.Schema) (schemaJSON, error) {
	out := schemaJSON{Fields: make([]fieldJSON, s.NumFields())}
	for i := range out.Fields {
		f, err := toFieldJSON(s.Field(i))
		if err != nil {
			return schemaJSON{}, err
		}
		out.Fields[i] = f
	}
	return out, nil
}

func fromSchemaJSON(s schemaJSON) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		field, err := fromFieldJSON(f)
		if err != nil {
			return nil, err
		}
		fields[i] = field
	}
	return arrow.NewSchema(fields, nil), nil
}

func marshalSchema(s *arrow.Schema) ([]byte, error) {
	sj, err := toSchemaJSON(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sj)
}

func unmarshalSchema(data []byte) (*arrow.Schema, error) {
	var sj schemaJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, errors.WrapFormatError(err, "decode_schema", "schema block is not valid JSON")
	}
	return fromSchemaJSON(sj)
}
