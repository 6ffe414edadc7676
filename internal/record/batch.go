// Package record groups equal-length columns under a schema.
package record

import (
	"fmt"
	"strings"

	"github.com/23skdu/stratum/internal/columnar"
	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// Batch is an immutable set of arrow columns sharing one row count.
type Batch struct {
	schema *arrow.Schema
	cols   []arrow.Array
	rows   int
}

// NamedColumn pairs a column with the name it gets in an inferred schema.
type NamedColumn struct {
	Name  string
	Array arrow.Array
}

// New checks cols against schema: one column per field, storable matching
// types and a common length. The batch retains every column.
func New(schema *arrow.Schema, cols []arrow.Array) (*Batch, error) {
	const op = "new_batch"
	if schema == nil {
		return nil, errors.NewSchemaMismatchError(op, "nil schema")
	}
	if len(cols) != schema.NumFields() {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, op,
			"%d columns for %d fields", len(cols), schema.NumFields())
	}
	rows := 0
	for i, col := range cols {
		f := schema.Field(i)
		if col == nil {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, op, "column %q is nil", f.Name)
		}
		if err := columnar.CheckType(f.Type); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, op,
				fmt.Sprintf("field %q", f.Name)).WithContext("column", i)
		}
		if !arrow.TypeEqual(col.DataType(), f.Type) {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, op,
				"column %q has type %s, field declares %s", f.Name, col.DataType(), f.Type).WithContext("column", i)
		}
		if i == 0 {
			rows = col.Len()
		} else if col.Len() != rows {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, op,
				"column %q has %d rows, expected %d", f.Name, col.Len(), rows).WithContext("column", i)
		}
	}
	out := make([]arrow.Array, len(cols))
	for i, c := range cols {
		c.Retain()
		out[i] = c
	}
	return &Batch{schema: schema, cols: out, rows: rows}, nil
}

// TryFromColumns infers a schema of nullable fields from the named columns.
func TryFromColumns(cols ...NamedColumn) (*Batch, error) {
	if len(cols) == 0 {
		return nil, errors.NewSchemaMismatchError("try_from_columns", "no columns")
	}
	fields := make([]arrow.Field, len(cols))
	arrays := make([]arrow.Array, len(cols))
	for i, c := range cols {
		if c.Array == nil {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "try_from_columns", "column %q is nil", c.Name)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: c.Array.DataType(), Nullable: true}
		arrays[i] = c.Array
	}
	return New(arrow.NewSchema(fields, nil), arrays)
}

func (b *Batch) Schema() *arrow.Schema { return b.schema }
func (b *Batch) NumRows() int          { return b.rows }
func (b *Batch) NumCols() int          { return len(b.cols) }

func (b *Batch) Column(i int) arrow.Array { return b.cols[i] }

func (b *Batch) ColumnName(i int) string { return b.schema.Field(i).Name }

// ColumnByName returns the first column with the given name.
func (b *Batch) ColumnByName(name string) (arrow.Array, bool) {
	idx := b.schema.FieldIndices(name)
	if len(idx) == 0 {
		return nil, false
	}
	return b.cols[idx[0]], true
}

// Record exposes the batch as an arrow record over the same columns. The
// caller must Release it.
func (b *Batch) Record() arrow.Record {
	return array.NewRecord(b.schema, b.cols, int64(b.rows))
}

// Release drops the batch's references to its columns.
func (b *Batch) Release() {
	for _, c := range b.cols {
		c.Release()
	}
}

// Equal compares schemas and the logical values of every column.
func Equal(a, b *Batch) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !a.schema.Equal(b.schema) || a.rows != b.rows {
		return false
	}
	for i := range a.cols {
		if !columnar.Equal(a.cols[i], b.cols[i]) {
			return false
		}
	}
	return true
}

func (b *Batch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "batch: %d rows\n", b.rows)
	for i, c := range b.cols {
		fmt.Fprintf(&sb, "  col[%d][%s]: %s\n", i, b.schema.Field(i).Name, c)
	}
	return sb.String()
}
