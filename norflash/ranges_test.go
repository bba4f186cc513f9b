package norflash

import (
	"reflect"
	"testing"
)

func TestRangeSubtract(t *testing.T) {
	r := Range{Start: 0x1000, Size: 0x1000}

	tests := []struct {
		other Range
		want  []Range
	}{
		{Range{Start: 0x3000, Size: 0x100}, []Range{r}},
		{Range{Start: 0x1800, Size: 0x100}, []Range{{0x1000, 0x800}, {0x1900, 0x700}}},
		{Range{Start: 0x0800, Size: 0x1000}, []Range{{0x1800, 0x800}}},
		{Range{Start: 0x1F00, Size: 0x1000}, []Range{{0x1000, 0xF00}}},
		{Range{Start: 0x0000, Size: 0x4000}, nil},
		{Range{Start: 0x2000, Size: 0x10}, []Range{r}},
	}

	for _, tc := range tests {
		if got := r.Subtract(tc.other); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s - %s = %v, expected %v", r, tc.other, got, tc.want)
		}
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 16, Size: 16}
	if r.Contains(15) || !r.Contains(16) || !r.Contains(31) || r.Contains(32) {
		t.Error("Contains bounds wrong")
	}
	if r.String() != "<0x10, 0x1F>" {
		t.Error("String:", r.String())
	}
}
