package colfile

import (
	"bufio"
	"io"
	"os"

	"github.com/23skdu/stratum/internal/errors"
	"github.com/23skdu/stratum/internal/metrics"
	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Writer appends batches to a stratum file. It writes the schema block on
// creation, one data block per Write and the footer on Finish.
//
// Any I/O failure is sticky: the writer refuses further calls and the output
// must be discarded. A rejected batch is not sticky, but once one is rejected
// Close no longer writes the footer on its own.
type Writer struct {
	w          io.Writer
	bw         *bufio.Writer
	f          *os.File
	schema     *arrow.Schema
	schemaJSON schemaJSON
	pos        int64
	blocks     []BlockInfo

	maxBlockSize int64
	rejected     int
	finished     bool
	err          error
	logger       zerolog.Logger
}

// NewWriter writes the file preamble and schema block to w. The caller keeps
// ownership of w.
func NewWriter(w io.Writer, schema *arrow.Schema, opts ...Option) (*Writer, error) {
	if schema == nil {
		return nil, errors.NewSchemaMismatchError("open_writer", "nil schema")
	}
	cfg := newConfig(opts)
	wr := &Writer{
		w:            w,
		schema:       schema,
		maxBlockSize: cfg.maxBlockSize,
		logger:       cfg.logger.With().Str("component", "colfile_writer").Logger(),
	}
	if err := wr.start(); err != nil {
		return nil, err
	}
	return wr, nil
}

// Create creates path exclusively and writes the schema block to it. It fails
// when path already exists. Close releases the file.
func Create(path string, schema *arrow.Schema, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, observe(errors.WrapIOError(err, "create", "open output file").WithContext("path", path))
	}
	bw := bufio.NewWriter(f)
	wr, err := NewWriter(bw, schema, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	wr.bw = bw
	wr.f = f
	wr.logger = wr.logger.With().Str("path", path).Logger()
	return wr, nil
}

func (w *Writer) start() error {
	sj, err := toSchemaJSON(w.schema)
	if err != nil {
		return observe(errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "open_writer", "encode schema"))
	}
	payload, err := json.Marshal(sj)
	if err != nil {
		return observe(errors.Wrap(err, errors.ErrorTypeSchemaMismatch, "open_writer", "encode schema"))
	}
	w.schemaJSON = sj
	if err := w.write(magic[:]); err != nil {
		return err
	}
	_, err = w.writeBlock(kindSchema, 0, payload)
	return err
}

// Schema returns the schema every batch must match.
func (w *Writer) Schema() *arrow.Schema { return w.schema }

// Blocks returns the extents of the data blocks written so far.
func (w *Writer) Blocks() []BlockInfo {
	out := make([]BlockInfo, len(w.blocks))
	copy(out, w.blocks)
	return out
}

// Write appends b as one data block. Batches whose schema differs from the
// writer's, or whose block would exceed the configured maximum block size,
// are rejected without writing anything.
func (w *Writer) Write(b *record.Batch) error {
	const op = "write_batch"
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return errors.NewValidationError(op, "writer already finished")
	}
	if b == nil {
		return w.reject(errors.NewSchemaMismatchError(op, "nil batch"))
	}
	if !b.Schema().Equal(w.schema) {
		return w.reject(errors.NewSchemaMismatchError(op, "batch schema differs from writer schema").
			WithContext("block", len(w.blocks)))
	}

	payload, err := encodeBatch(b)
	if err != nil {
		return w.reject(err)
	}
	if size := int64(headerSize + len(payload)); size > w.maxBlockSize {
		return w.reject(errors.Newf(errors.ErrorTypeValidation, op,
			"block of %d bytes exceeds limit of %d", size, w.maxBlockSize).WithContext("block", len(w.blocks)))
	}
	info, err := w.writeBlock(kindData, b.NumRows(), payload)
	if err != nil {
		return err
	}
	w.blocks = append(w.blocks, info)
	metrics.BlocksWrittenTotal.Inc()
	w.logger.Debug().
		Int("block", len(w.blocks)-1).
		Int64("offset", info.Offset).
		Int64("length", info.Length).
		Int("rows", b.NumRows()).
		Msg("wrote data block")
	return nil
}

// Finish writes the footer and flushes buffered output. Calling it again is a
// no-op.
func (w *Writer) Finish() error {
	const op = "finish"
	if w.err != nil {
		return w.err
	}
	if w.finished {
		return nil
	}

	blocks := w.blocks
	if blocks == nil {
		blocks = []BlockInfo{}
	}
	footer, err := json.Marshal(footerJSON{
		Version: FormatVersion,
		Schema:  w.schemaJSON,
		Blocks:  blocks,
	})
	if err != nil {
		return w.fail(errors.Wrap(err, errors.ErrorTypeIO, op, "encode footer"))
	}
	if err := w.write(footer); err != nil {
		return err
	}
	t := trailer{footerLen: uint64(len(footer)), checksum: xxhash.Sum64(footer)}
	if err := w.write(t.marshal()); err != nil {
		return err
	}
	if w.bw != nil {
		if err := w.bw.Flush(); err != nil {
			return w.fail(errors.WrapIOError(err, op, "flush output"))
		}
	}
	if w.f != nil {
		if err := w.f.Sync(); err != nil {
			return w.fail(errors.WrapIOError(err, op, "sync output file"))
		}
	}

	w.finished = true
	metrics.FilesFinishedTotal.Inc()
	w.logger.Debug().Int("blocks", len(w.blocks)).Int64("size", w.pos).Msg("finished file")
	return nil
}

// Close finishes the file if needed and releases a file opened by Create.
// After a rejected Write it only finishes when Finish was called explicitly,
// so an interrupted file is left without a footer and readers refuse it.
// The close error is reported even when finishing failed first.
func (w *Writer) Close() error {
	var err error
	if w.rejected == 0 || w.finished {
		err = w.Finish()
	} else if w.err == nil {
		w.logger.Warn().Int("rejected", w.rejected).Msg("closing without footer after rejected batches")
		if w.bw != nil {
			if ferr := w.bw.Flush(); ferr != nil {
				err = w.fail(errors.WrapIOError(ferr, "close", "flush output"))
			}
		}
	}
	if w.f != nil {
		if cerr := w.f.Close(); cerr != nil && err == nil {
			err = observe(errors.WrapIOError(cerr, "close", "close output file"))
		}
		w.f = nil
	}
	return err
}

func (w *Writer) writeBlock(kind uint32, rows int, payload []byte) (BlockInfo, error) {
	info := BlockInfo{Offset: w.pos, Length: int64(headerSize + len(payload)), Rows: int64(rows)}
	if err := w.write(newBlockHeader(kind, rows, payload).marshal()); err != nil {
		return BlockInfo{}, err
	}
	if err := w.write(payload); err != nil {
		return BlockInfo{}, err
	}
	return info, nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	metrics.BytesWrittenTotal.Add(float64(n))
	if err != nil {
		return w.fail(errors.WrapIOError(err, "write", "write to sink").WithContext("offset", w.pos))
	}
	return nil
}

func (w *Writer) reject(err error) error {
	w.rejected++
	return observe(err)
}

func (w *Writer) fail(err *errors.StructuredError) error {
	w.err = err
	w.logger.Warn().Err(err).Msg("writer failed")
	return observe(err)
}

// observe counts err by type and returns it unchanged.
func observe(err error) error {
	if err == nil {
		return nil
	}
	typ, ok := errors.TypeOf(err)
	if !ok {
		typ = "unknown"
	}
	metrics.FileErrorsTotal.WithLabelValues(string(typ)).Inc()
	return err
}
