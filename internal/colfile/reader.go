package colfile

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/23skdu/stratum/internal/errors"
	"github.com/23skdu/stratum/internal/metrics"
	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ReadAtSeeker is the source a Reader decodes from.
type ReadAtSeeker interface {
	io.ReaderAt
	io.Seeker
}

// Reader decodes batches from a stratum file. The footer is parsed when the
// reader is created; afterwards any block can be decoded directly through its
// footer entry.
type Reader struct {
	r      ReadAtSeeker
	f      *os.File
	size   int64
	schema *arrow.Schema
	blocks []BlockInfo
	cur    int

	maxBlockSize int64
	logger       zerolog.Logger
}

// NewReader parses the trailer, footer and schema block of r. The caller
// keeps ownership of r.
func NewReader(r ReadAtSeeker, opts ...Option) (*Reader, error) {
	cfg := newConfig(opts)
	rd := &Reader{
		r:            r,
		maxBlockSize: cfg.maxBlockSize,
		logger:       cfg.logger.With().Str("component", "colfile_reader").Logger(),
	}
	if err := rd.open(); err != nil {
		rd.logger.Warn().Err(err).Msg("failed to open file")
		return nil, observe(err)
	}
	return rd, nil
}

// Open opens path for reading. Close releases the file.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, observe(errors.WrapIOError(err, "open", "open input file").WithContext("path", path))
	}
	opts = append(opts[:len(opts):len(opts)], withPath(path))
	rd, err := NewReader(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rd.f = f
	return rd, nil
}

func withPath(path string) Option {
	return func(cfg *config) {
		cfg.logger = cfg.logger.With().Str("path", path).Logger()
	}
}

func (r *Reader) open() error {
	const op = "open_reader"
	size, err := r.r.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.WrapIOError(err, op, "determine file size")
	}
	r.size = size

	dataStart := int64(len(magic)) + headerSize
	if size < dataStart+trailerSize {
		return errors.Newf(errors.ErrorTypeFormat, op, "file of %d bytes is too small", size).WithContext("size", size)
	}

	head := make([]byte, len(magic))
	if err := r.readAt(head, 0); err != nil {
		return err
	}
	if !bytes.Equal(head, magic[:]) {
		return errors.NewFormatError(op, "missing leading magic, not a stratum file")
	}

	tail := make([]byte, trailerSize)
	if err := r.readAt(tail, size-trailerSize); err != nil {
		return err
	}
	t, err := parseTrailer(tail)
	if err != nil {
		return err
	}

	footerEnd := size - trailerSize
	if t.footerLen == 0 || t.footerLen > uint64(footerEnd-dataStart) {
		return errors.Newf(errors.ErrorTypeFormat, op, "footer length %d out of range", t.footerLen)
	}
	footerStart := footerEnd - int64(t.footerLen)
	footerBytes := make([]byte, t.footerLen)
	if err := r.readAt(footerBytes, footerStart); err != nil {
		return err
	}
	if sum := xxhash.Sum64(footerBytes); sum != t.checksum {
		return errors.Newf(errors.ErrorTypeFormat, op, "footer checksum mismatch: expected %x, got %x", t.checksum, sum)
	}

	var footer footerJSON
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return errors.WrapFormatError(err, op, "footer is not valid JSON")
	}
	if footer.Version != FormatVersion {
		return errors.Newf(errors.ErrorTypeFormat, op, "unsupported format version %d", footer.Version)
	}
	schema, err := fromSchemaJSON(footer.Schema)
	if err != nil {
		return err
	}

	schemaEnd, err := r.checkSchemaBlock(schema, footerStart)
	if err != nil {
		return err
	}
	if err := checkExtents(footer.Blocks, schemaEnd, footerStart); err != nil {
		return err
	}

	r.schema = schema
	r.blocks = footer.Blocks
	r.logger.Debug().Int("blocks", len(r.blocks)).Int64("size", size).Msg("parsed footer")
	return nil
}

// checkSchemaBlock decodes the schema block that follows the leading magic and
// requires it to agree with the footer. It returns the end of the block.
func (r *Reader) checkSchemaBlock(footerSchema *arrow.Schema, limit int64) (int64, error) {
	const op = "read_schema_block"
	start := int64(len(magic))
	hdr := make([]byte, headerSize)
	if err := r.readAt(hdr, start); err != nil {
		return 0, err
	}
	h := parseBlockHeader(hdr)
	end := start + headerSize + int64(h.payloadLen)
	if h.payloadLen > uint64(limit) || end > limit {
		return 0, errors.Newf(errors.ErrorTypeFormat, op, "schema block length %d overruns the footer", h.payloadLen)
	}
	payload := make([]byte, h.payloadLen)
	if err := r.readAt(payload, start+headerSize); err != nil {
		return 0, err
	}
	if err := h.verify(op, kindSchema, payload); err != nil {
		return 0, err
	}
	schema, err := unmarshalSchema(payload)
	if err != nil {
		return 0, err
	}
	if !schema.Equal(footerSchema) {
		return 0, errors.NewFormatError(op, "schema block disagrees with footer schema")
	}
	return end, nil
}

// checkExtents requires blocks to be ordered, non-overlapping and inside
// [lo, hi).
func checkExtents(blocks []BlockInfo, lo, hi int64) error {
	const op = "read_footer"
	prevEnd := lo
	for i, b := range blocks {
		if b.Offset < prevEnd || b.Length < headerSize || b.Rows < 0 || b.Length > hi-b.Offset {
			return errors.Newf(errors.ErrorTypeFormat, op,
				"block %d extent [%d, +%d) is outside the data region [%d, %d)", i, b.Offset, b.Length, prevEnd, hi).
				WithContext("block", i)
		}
		prevEnd = b.Offset + b.Length
	}
	return nil
}

// Schema returns the schema recorded in the footer.
func (r *Reader) Schema() *arrow.Schema { return r.schema }

// NumBlocks returns the number of data blocks in the file.
func (r *Reader) NumBlocks() int { return len(r.blocks) }

// Block returns the footer entry of block n.
func (r *Reader) Block(n int) BlockInfo { return r.blocks[n] }

// Blocks returns a copy of the footer's block table.
func (r *Reader) Blocks() []BlockInfo {
	out := make([]BlockInfo, len(r.blocks))
	copy(out, r.blocks)
	return out
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// SeekToBlock positions the reader so that the next call to Next decodes
// block n. Seeking to NumBlocks positions the reader at the end.
func (r *Reader) SeekToBlock(n int) error {
	if n < 0 || n > len(r.blocks) {
		return observe(errors.Newf(errors.ErrorTypeValidation, "seek_to_block",
			"block %d out of range [0, %d]", n, len(r.blocks)))
	}
	r.cur = n
	return nil
}

// Next decodes the block at the current position and advances past it, also
// when decoding fails. It returns io.EOF once every block has been consumed.
func (r *Reader) Next() (*record.Batch, error) {
	if r.cur >= len(r.blocks) {
		return nil, io.EOF
	}
	n := r.cur
	r.cur++
	b, err := r.readBlock(n)
	if err != nil {
		r.logger.Warn().Err(err).Int("block", n).Msg("failed to decode block")
		return nil, observe(err)
	}
	return b, nil
}

// ReadBlock decodes block n and leaves the reader positioned after it.
func (r *Reader) ReadBlock(n int) (*record.Batch, error) {
	if err := r.SeekToBlock(n); err != nil {
		return nil, err
	}
	if n == len(r.blocks) {
		return nil, io.EOF
	}
	return r.Next()
}

func (r *Reader) readBlock(n int) (*record.Batch, error) {
	const op = "read_block"
	start := time.Now()
	info := r.blocks[n]
	if info.Length > r.maxBlockSize {
		return nil, errors.Newf(errors.ErrorTypeFormat, op,
			"block of %d bytes exceeds limit of %d", info.Length, r.maxBlockSize).WithContext("block", n)
	}

	buf := make([]byte, info.Length)
	if err := r.readAt(buf, info.Offset); err != nil {
		return nil, err
	}
	h := parseBlockHeader(buf[:headerSize])
	payload := buf[headerSize:]
	if err := h.verify(op, kindData, payload); err != nil {
		if se, ok := err.(*errors.StructuredError); ok {
			se.WithContext("block", n)
		}
		return nil, err
	}
	if int64(h.rows) != info.Rows {
		return nil, errors.Newf(errors.ErrorTypeFormat, op,
			"block header holds %d rows, footer records %d", h.rows, info.Rows).WithContext("block", n)
	}

	b, err := decodeBatch(r.schema, payload)
	if err != nil {
		return nil, err
	}
	if int64(b.NumRows()) != info.Rows {
		return nil, errors.Newf(errors.ErrorTypeFormat, op,
			"decoded %d rows, footer records %d", b.NumRows(), info.Rows).WithContext("block", n)
	}

	metrics.BlocksReadTotal.Inc()
	metrics.BytesReadTotal.Add(float64(info.Length))
	metrics.BlockDecodeDurationSeconds.Observe(time.Since(start).Seconds())
	r.logger.Debug().Int("block", n).Int64("rows", info.Rows).Msg("decoded data block")
	return b, nil
}

func (r *Reader) readAt(p []byte, off int64) error {
	if n, err := r.r.ReadAt(p, off); err != nil && n < len(p) {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.WrapFormatError(err, "read", "file truncated").WithContext("offset", off)
		}
		return errors.WrapIOError(err, "read", "read from source").WithContext("offset", off)
	}
	return nil
}

// Close releases a file opened by Open.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	if err != nil {
		return observe(errors.WrapIOError(err, "close", "close input file"))
	}
	return nil
}
