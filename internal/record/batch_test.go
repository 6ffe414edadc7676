package record

import (
	"testing"

	"github.com/23skdu/stratum/internal/columnar"
	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func nameField() arrow.Field {
	return arrow.Field{Name: "name", Type: arrow.BinaryTypes.StringView, Nullable: true}
}

func slicedList(t *testing.T, start, end int64) *array.LargeList {
	t.Helper()
	child := columnar.NewStringViewFromOptional(memory.DefaultAllocator,
		[]*string{strPtr("foo"), strPtr("bar"), strPtr("baz"), nil})
	list, err := columnar.NewLargeList(nameField(), []int64{start, end}, child, nil)
	require.NoError(t, err)
	return list
}

func TestTryFromColumns(t *testing.T) {
	b, err := TryFromColumns(NamedColumn{Name: "large_list_array", Array: slicedList(t, 2, 4)})
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, 1, b.NumRows())
	assert.Equal(t, 1, b.NumCols())
	assert.Equal(t, "large_list_array", b.ColumnName(0))

	f := b.Schema().Field(0)
	assert.True(t, f.Nullable)
	assert.True(t, arrow.TypeEqual(f.Type, arrow.LargeListOfField(nameField())))

	col, ok := b.ColumnByName("large_list_array")
	require.True(t, ok)
	assert.Same(t, b.Column(0), col)
	_, ok = b.ColumnByName("missing")
	assert.False(t, ok)
}

func TestTryFromColumns_LengthMismatch(t *testing.T) {
	tags := columnar.NewStringViewFromOptional(memory.DefaultAllocator, []*string{strPtr("a"), strPtr("b")})
	_, err := TryFromColumns(
		NamedColumn{Name: "list", Array: slicedList(t, 0, 2)},
		NamedColumn{Name: "tags", Array: tags},
	)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err), err.Error())

	_, err = TryFromColumns()
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestNew_TypeMismatch(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.BinaryTypes.StringView}}, nil)
	_, err := New(schema, []arrow.Array{slicedList(t, 0, 2)})
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))

	_, err = New(schema, nil)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestNew_UnsupportedType(t *testing.T) {
	bldr := array.NewInt64Builder(memory.DefaultAllocator)
	defer bldr.Release()
	bldr.AppendValues([]int64{1, 2}, nil)
	ints := bldr.NewArray()
	defer ints.Release()

	_, err := TryFromColumns(NamedColumn{Name: "n", Array: ints})
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err), err.Error())
}

func TestEqual_LogicalNotPhysical(t *testing.T) {
	padded, err := TryFromColumns(NamedColumn{Name: "l", Array: slicedList(t, 2, 4)})
	require.NoError(t, err)

	compactChild := columnar.NewStringViewFromOptional(memory.DefaultAllocator, []*string{strPtr("baz"), nil})
	compactList, err := columnar.NewLargeList(nameField(), []int64{0, 2}, compactChild, nil)
	require.NoError(t, err)
	compact, err := TryFromColumns(NamedColumn{Name: "l", Array: compactList})
	require.NoError(t, err)

	assert.True(t, Equal(padded, compact))

	other, err := TryFromColumns(NamedColumn{Name: "l", Array: slicedList(t, 0, 2)})
	require.NoError(t, err)
	assert.False(t, Equal(padded, other))

	renamed, err := TryFromColumns(NamedColumn{Name: "m", Array: slicedList(t, 2, 4)})
	require.NoError(t, err)
	assert.False(t, Equal(padded, renamed))
}

func TestBatchRecord(t *testing.T) {
	b, err := TryFromColumns(NamedColumn{Name: "l", Array: slicedList(t, 2, 4)})
	require.NoError(t, err)
	defer b.Release()

	rec := b.Record()
	defer rec.Release()

	assert.EqualValues(t, 1, rec.NumRows())
	assert.Equal(t, "l", rec.ColumnName(0))

	ll := rec.Column(0).(*array.LargeList)
	start, end := ll.ValueOffsets(0)
	assert.Equal(t, int64(2), start)
	assert.Equal(t, int64(4), end)
	assert.Equal(t, 4, ll.ListValues().Len())
	assert.Contains(t, b.String(), "col[0][l]:")
	assert.Contains(t, b.String(), `"baz"`)
}
