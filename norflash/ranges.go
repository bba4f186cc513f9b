package norflash

import "fmt"

// Range is a half open interval [Start, Start+Size) of the memory array.
type Range struct {
	Start int64
	Size  int64
}

func (r Range) End() int64 {
	return r.Start + r.Size
}

func (r Range) Contains(pos int64) bool {
	return pos >= r.Start && pos < r.End()
}

func (r Range) Intersects(other Range) bool {
	return r.Start < other.End() && other.Start < r.End()
}

// Subtract returns the parts of r not covered by other, in ascending order.
func (r Range) Subtract(other Range) []Range {
	if !r.Intersects(other) {
		return []Range{r}
	}

	var result []Range
	if other.Start > r.Start {
		result = append(result, Range{Start: r.Start, Size: other.Start - r.Start})
	}
	if other.End() < r.End() {
		result = append(result, Range{Start: other.End(), Size: r.End() - other.End()})
	}
	return result
}

func (r Range) String() string {
	return fmt.Sprintf("<0x%X, 0x%X>", r.Start, r.End()-1)
}
