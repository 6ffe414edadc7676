package colfile

import (
	"bytes"
	"testing"

	"github.com/23skdu/stratum/internal/columnar"
	"github.com/23skdu/stratum/internal/record"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func nameField() arrow.Field {
	return arrow.Field{Name: "name", Type: arrow.BinaryTypes.StringView, Nullable: true}
}

func stringViews(values ...*string) arrow.Array {
	return columnar.NewStringViewFromOptional(memory.DefaultAllocator, values)
}

// listBatch builds a one row batch whose single list column windows
// [start, end) of the child "foo", "bar", "baz", null.
func listBatch(t *testing.T, start, end int64) *record.Batch {
	t.Helper()
	child := stringViews(strPtr("foo"), strPtr("bar"), strPtr("baz"), nil)
	list, err := columnar.NewLargeList(nameField(), []int64{start, end}, child, nil)
	require.NoError(t, err)
	b, err := record.TryFromColumns(record.NamedColumn{Name: "large_list_array", Array: list})
	require.NoError(t, err)
	return b
}

func writeToBuffer(t *testing.T, batches ...*record.Batch) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteBatches(&buf, batches[0].Schema(), batches))
	return buf.Bytes()
}

func derefAll(vals []*string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if v == nil {
			out[i] = nil
			continue
		}
		out[i] = *v
	}
	return out
}
