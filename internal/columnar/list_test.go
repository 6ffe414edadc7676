package columnar

import (
	"testing"

	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLargeList_ZeroStartWindow(t *testing.T) {
	list, err := NewLargeList(nameField(), []int64{0, 2}, fooBarBazNull(), nil)
	require.NoError(t, err)
	defer list.Release()

	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 0, list.NullN())
	vals, ok := ListStrings(list, 0)
	require.True(t, ok)
	assert.Equal(t, []any{"foo", "bar"}, derefAll(vals))
}

func TestNewLargeList_NonZeroStartWindow(t *testing.T) {
	list, err := NewLargeList(nameField(), []int64{2, 4}, fooBarBazNull(), nil)
	require.NoError(t, err)
	defer list.Release()

	assert.Equal(t, 1, list.Len())
	start, end := list.ValueOffsets(0)
	assert.Equal(t, int64(2), start)
	assert.Equal(t, int64(4), end)
	assert.Equal(t, []int64{2, 4}, list.Offsets())

	vals, ok := ListStrings(list, 0)
	require.True(t, ok)
	assert.Equal(t, []any{"baz", nil}, derefAll(vals))

	// padding stays physically present but is unreachable
	assert.Equal(t, 4, list.ListValues().Len())
	assert.Contains(t, list.String(), `"baz"`)
	assert.NotContains(t, list.String(), `"foo"`)
}

func TestNewLargeList_OffsetsPastChild(t *testing.T) {
	_, err := NewLargeList(nameField(), []int64{0, 5}, fooBarBazNull(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOffsets(err), err.Error())
}

func TestNewLargeList_DecreasingOffsets(t *testing.T) {
	_, err := NewLargeList(nameField(), []int64{3, 1}, fooBarBazNull(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOffsets(err), err.Error())
}

func TestNewLargeList_InvalidInputs(t *testing.T) {
	child := fooBarBazNull()
	tests := []struct {
		name     string
		field    arrow.Field
		offsets  []int64
		values   arrow.Array
		validity []byte
	}{
		{"empty offsets", nameField(), nil, child, nil},
		{"negative start", nameField(), []int64{-1, 2}, child, nil},
		{"nil child", nameField(), []int64{0, 1}, nil, nil},
		{"child type mismatch", arrow.Field{Name: "x", Type: arrow.LargeListOfField(nameField())}, []int64{0, 1}, child, nil},
		{"short validity", nameField(), make([]int64, 10), child, []byte{0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLargeList(tt.field, tt.offsets, tt.values, tt.validity)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidOffsets(err), err.Error())
		})
	}
}

func TestLargeList_EmptyAndNullElements(t *testing.T) {
	// element 0: [1,1) empty, element 1: null, element 2: [1,3)
	validity := ValidityFromBools([]bool{true, false, true})
	list, err := NewLargeList(nameField(), []int64{1, 1, 1, 3}, fooBarBazNull(), validity)
	require.NoError(t, err)
	defer list.Release()

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, 1, list.NullN())

	empty, ok := ListStrings(list, 0)
	require.True(t, ok)
	assert.Empty(t, empty)

	_, ok = ListStrings(list, 1)
	assert.False(t, ok)
	assert.True(t, list.IsNull(1))

	vals, ok := ListStrings(list, 2)
	require.True(t, ok)
	assert.Equal(t, []any{"bar", "baz"}, derefAll(vals))
	assert.Equal(t, []int64{1, 1, 1, 3}, ListOffsets(list))
}

func TestLargeList_NestedLists(t *testing.T) {
	inner, err := NewLargeList(nameField(), []int64{0, 1, 3, 4}, fooBarBazNull(), nil)
	require.NoError(t, err)
	defer inner.Release()

	innerField := arrow.Field{Name: "item", Type: inner.DataType(), Nullable: true}
	outer, err := NewLargeList(innerField, []int64{1, 3}, inner, nil)
	require.NoError(t, err)
	defer outer.Release()

	start, end := outer.ValueOffsets(0)
	assert.Equal(t, int64(2), end-start)
	assert.Equal(t, 3, outer.ListValues().Len())
	assert.NoError(t, CheckType(outer.DataType()))
}

func TestListOffsets_SlicedArrowList(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewLargeListBuilderWithField(mem, nameField())
	defer bldr.Release()
	vb := bldr.ValueBuilder().(*array.StringViewBuilder)
	bldr.Append(true)
	vb.Append("foo")
	vb.Append("bar")
	bldr.Append(true)
	vb.Append("baz")
	vb.AppendNull()

	full := bldr.NewArray()
	defer full.Release()
	sliced := array.NewSlice(full, 1, 2).(*array.LargeList)
	defer sliced.Release()

	assert.Equal(t, []int64{2, 4}, ListOffsets(sliced))
	assert.Equal(t, 4, sliced.ListValues().Len())
	vals, ok := ListStrings(sliced, 0)
	require.True(t, ok)
	assert.Equal(t, []any{"baz", nil}, derefAll(vals))
}

func TestCheckType(t *testing.T) {
	assert.NoError(t, CheckType(arrow.BinaryTypes.StringView))
	assert.NoError(t, CheckType(arrow.LargeListOfField(nameField())))

	err := CheckType(arrow.PrimitiveTypes.Int32)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Error(t, CheckType(arrow.LargeListOf(arrow.PrimitiveTypes.Int64)))
}
