package colfile

import (
	"io"

	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
)

// WriteBatches writes a complete file with one block per batch to w.
func WriteBatches(w io.Writer, schema *arrow.Schema, batches []*record.Batch, opts ...Option) error {
	wr, err := NewWriter(w, schema, opts...)
	if err != nil {
		return err
	}
	for _, b := range batches {
		if err := wr.Write(b); err != nil {
			return err
		}
	}
	return wr.Finish()
}

// WriteFile creates path exclusively and writes batches to it. On failure the
// file is closed without a footer and left in place for the caller to
// discard; Open and Verify reject it.
func WriteFile(path string, schema *arrow.Schema, batches []*record.Batch, opts ...Option) (err error) {
	wr, err := Create(path, schema, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := wr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, b := range batches {
		if err := wr.Write(b); err != nil {
			return err
		}
	}
	return wr.Finish()
}

// ReadBatch opens path and decodes block index. It returns io.EOF when index
// equals the number of blocks.
func ReadBatch(path string, index int, opts ...Option) (*record.Batch, error) {
	rd, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	if err := rd.SeekToBlock(index); err != nil {
		return nil, err
	}
	return rd.Next()
}
