package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/memutils"
)

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.FreeRangeSizeMin)

	stats.PageCount = 1
	stats.PageBytes = 8192
	stats.AddAllocation(32)
	stats.AddAllocation(128)
	stats.AddFreeRange(64)
	stats.AddFreeRange(4096)

	var other memutils.DetailedStatistics
	other.Clear()
	other.PageCount = 1
	other.PageBytes = 8192
	other.AddAllocation(8192)

	stats.AddDetailedStatistics(&other)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			PageCount:       2,
			AllocationCount: 3,
			PageBytes:       16384,
			AllocationBytes: 8352,
		},
		FreeRangeCount:    2,
		AllocationSizeMin: 32,
		AllocationSizeMax: 8192,
		FreeRangeSizeMin:  64,
		FreeRangeSizeMax:  4096,
	}, stats)
	require.Equal(t, 16384-8352, stats.UnusedBytes())
}
