package memutils_test

import (
	"encoding/json"
	"testing"

	"github.com/byteninja/njvm/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

func printJSON(stats *memutils.DetailedStatistics) map[string]int {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	stats.PrintJSON(&obj)
	obj.End()

	var fields map[string]int
	err := json.Unmarshal(writer.Bytes(), &fields)
	if err != nil {
		panic(err)
	}
	return fields
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	stats.AddAllocation(8)
	stats.AddAllocation(32)
	stats.AddUnusedRange(100)

	var other memutils.DetailedStatistics
	other.Clear()
	other.BlockCount = 1
	other.BlockBytes = 256
	other.AddAllocation(4)
	other.AddUnusedRange(200)

	stats.AddDetailedStatistics(&other)

	require.Equal(t, 1, stats.BlockCount)
	require.Equal(t, 256, stats.BlockBytes)
	require.Equal(t, 3, stats.AllocationCount)
	require.Equal(t, 44, stats.AllocationBytes)
	require.Equal(t, 4, stats.AllocationSizeMin)
	require.Equal(t, 32, stats.AllocationSizeMax)
	require.Equal(t, 2, stats.UnusedRangeCount)
	require.Equal(t, 100, stats.UnusedRangeSizeMin)
	require.Equal(t, 200, stats.UnusedRangeSizeMax)

	fields := printJSON(&stats)
	require.Equal(t, 3, fields["AllocationCount"])
	require.Equal(t, 4, fields["AllocationSizeMin"])
	require.Equal(t, 200, fields["UnusedRangeSizeMax"])
}

func TestDetailedStatisticsOmitsEmptyRanges(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.BlockCount = 2

	fields := printJSON(&stats)
	require.Equal(t, 2, fields["BlockCount"])
	require.NotContains(t, fields, "AllocationSizeMin")
	require.NotContains(t, fields, "UnusedRangeSizeMin")

	stats.Clear()
	require.Equal(t, 0, stats.BlockCount)
}
