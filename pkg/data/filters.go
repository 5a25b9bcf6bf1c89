package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// FilterByPeriod keeps the trailing period of data, measured back from the last candle
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}

	cutoff := data[len(data)-1].Timestamp.Add(-period)
	startIdx := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoff)
	})
	return data[startIdx:]
}

// FilterByLookbackDays keeps the trailing number of days of data
func FilterByLookbackDays(data []types.OHLCV, days int) []types.OHLCV {
	return FilterByPeriod(data, time.Duration(days)*24*time.Hour)
}

// FilterByDateRange keeps candles with start <= timestamp <= end
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, candle := range data {
		if !candle.Timestamp.Before(start) && !candle.Timestamp.After(end) {
			filtered = append(filtered, candle)
		}
	}
	return filtered
}

// ValidateTimeSequence ensures data is in strictly increasing chronological order
func ValidateTimeSequence(data []types.OHLCV) error {
	for i := 1; i < len(data); i++ {
		if data[i].Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, data[i].Timestamp.Format(time.RFC3339), data[i-1].Timestamp.Format(time.RFC3339))
		}
		if data[i].Timestamp.Equal(data[i-1].Timestamp) {
			return fmt.Errorf("duplicate timestamp at index %d: %s",
				i, data[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Normalize sorts a copy of data by timestamp and drops repeated timestamps, keeping the first occurrence
func Normalize(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for i, candle := range sorted {
		if i > 0 && candle.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, candle)
	}
	return out
}
