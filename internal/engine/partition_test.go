package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionEvenSplit(t *testing.T) {
	ranges := Partition(1000, 4)
	require.Len(t, ranges, 4)

	assert.Equal(t, []Range{
		{Start: 0, End: 250},
		{Start: 250, End: 500},
		{Start: 500, End: 750},
		{Start: 750, End: 1000},
	}, ranges)
}

func TestPartitionCoversWithoutGaps(t *testing.T) {
	totals := []int64{0, 1, 7, 100, 999, 1000, 1001, 1<<20 + 3}
	counts := []int{1, 2, 3, 4, 7, 16}

	for _, total := range totals {
		for _, count := range counts {
			ranges := Partition(total, count)
			require.Len(t, ranges, count)

			var sum int64
			var prev int64
			for i, r := range ranges {
				assert.Equal(t, prev, r.Start, "total=%d count=%d range %d not contiguous", total, count, i)
				assert.GreaterOrEqual(t, r.End, r.Start, "total=%d count=%d range %d inverted", total, count, i)
				prev = r.End
				sum += r.Len()
			}
			assert.Equal(t, total, prev, "total=%d count=%d does not cover", total, count)
			assert.Equal(t, total, sum)
		}
	}
}

func TestPartitionSizesDifferByAtMostOne(t *testing.T) {
	ranges := Partition(1003, 4)

	minLen, maxLen := ranges[0].Len(), ranges[0].Len()
	for _, r := range ranges {
		minLen = min(minLen, r.Len())
		maxLen = max(maxLen, r.Len())
	}
	assert.LessOrEqual(t, maxLen-minLen, int64(1))
}

func TestPartitionFewerBytesThanWorkers(t *testing.T) {
	ranges := Partition(2, 4)
	require.Len(t, ranges, 4)

	var sum int64
	for _, r := range ranges {
		sum += r.Len()
	}
	assert.Equal(t, int64(2), sum)
}

func TestPartitionInvalidCount(t *testing.T) {
	ranges := Partition(100, 0)
	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Start: 0, End: 100}, ranges[0])
}

func TestPartitionIsPure(t *testing.T) {
	assert.Equal(t, Partition(12345, 7), Partition(12345, 7))
}
