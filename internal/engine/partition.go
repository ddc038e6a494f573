package engine

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start int64
	End   int64
}

func (r Range) Len() int64 { return r.End - r.Start }

// Partition slices [0, total) into count contiguous ranges. Boundary i
// sits at floor(total*i/count), so the ranges are disjoint, cover the
// whole interval, and differ in size by at most one byte. Totals smaller
// than count leave some ranges empty; their owners close them on the
// first rebalance.
func Partition(total int64, count int) []Range {
	if count < 1 {
		count = 1
	}

	ranges := make([]Range, count)
	for i := 0; i < count; i++ {
		ranges[i] = Range{
			Start: total * int64(i) / int64(count),
			End:   total * int64(i+1) / int64(count),
		}
	}
	return ranges
}
