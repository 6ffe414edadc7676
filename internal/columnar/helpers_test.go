package columnar

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func strPtr(s string) *string { return &s }

// fooBarBazNull is the four slot child used throughout: "foo", "bar", "baz", null.
func fooBarBazNull() *array.StringView {
	return NewStringViewFromOptional(memory.DefaultAllocator,
		[]*string{strPtr("foo"), strPtr("bar"), strPtr("baz"), nil})
}

func nameField() arrow.Field {
	return arrow.Field{Name: "name", Type: arrow.BinaryTypes.StringView, Nullable: true}
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
