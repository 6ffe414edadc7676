// Package columnar builds and checks the arrow arrays a stratum file holds:
// string view leaves and large lists whose offsets window into a shared
// child array.
//
// The constructors validate physical buffers and then wrap them in arrow-go
// arrays without copying or re-basing anything, so an array read back from
// disk has exactly the layout it was written with. Equality is logical: two
// lists are equal when every element window reads the same values.
package columnar

import (
	"github.com/23skdu/stratum/internal/errors"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/bitutil"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// CheckType reports whether dt can be stored: string_view, or large_list of
// a storable element type.
func CheckType(dt arrow.DataType) error {
	switch t := dt.(type) {
	case *arrow.StringViewType:
		return nil
	case *arrow.LargeListType:
		return CheckType(t.Elem())
	default:
		return errors.Newf(errors.ErrorTypeValidation, "check_type", "unsupported type %s", dt)
	}
}

// Equal compares the logical values of two arrays. List elements are compared
// through their offset windows, so padding and offset bases do not matter.
func Equal(a, b arrow.Array) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return array.Equal(a, b)
}

// ValidityBytes returns the number of bytes a validity bitmap for n slots needs.
func ValidityBytes(n int) int {
	return int(bitutil.BytesForBits(int64(n)))
}

// ValidityFromBools packs valid flags into an LSB-ordered bitmap. It returns
// nil when every slot is valid.
func ValidityFromBools(valid []bool) []byte {
	allValid := true
	for _, v := range valid {
		if !v {
			allValid = false
			break
		}
	}
	if allValid {
		return nil
	}
	bm := make([]byte, ValidityBytes(len(valid)))
	for i, v := range valid {
		if v {
			bitutil.SetBit(bm, i)
		}
	}
	return bm
}

// Validity returns the validity bitmap of arr starting at bit 0, or nil when
// arr has no nulls. Sliced arrays get a shifted copy.
func Validity(arr arrow.Array) []byte {
	data := arr.Data()
	bufs := data.Buffers()
	if arr.NullN() == 0 || len(bufs) == 0 || bufs[0] == nil {
		return nil
	}
	n := data.Len()
	if data.Offset() == 0 {
		return bufs[0].Bytes()[:ValidityBytes(n)]
	}
	out := make([]byte, ValidityBytes(n))
	bitutil.CopyBitmap(bufs[0].Bytes(), data.Offset(), n, out, 0)
	return out
}

func bitIsValid(bm []byte, i int) bool {
	return bm == nil || bitutil.BitIsSet(bm, i)
}

func countNulls(bm []byte, n int) int {
	if bm == nil || n == 0 {
		return 0
	}
	return n - bitutil.CountSetBits(bm, 0, n)
}

func validityBuffer(bm []byte) *memory.Buffer {
	if bm == nil {
		return nil
	}
	return memory.NewBufferBytes(bm)
}
