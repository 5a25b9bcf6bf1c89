package data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-evolver/internal/logger"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

func hourly(n int) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := make([]types.OHLCV, n)
	for i := range data {
		p := 100 + float64(i)
		data[i] = types.OHLCV{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	return data
}

// TestCSVProvider_Read tests parsing with malformed rows skipped
func TestCSVProvider_Read(t *testing.T) {
	csvData := strings.Join([]string{
		"timestamp,open,high,low,close,volume",
		"2024-01-01 00:00:00,100,105,95,102,10",
		"2024-01-01 01:00:00,102,bad,95,102,10",
		"2024-01-01 02:00:00,102,101,95,102,10",
		"2024-01-01 03:00:00,102,106,101,104,12",
		"2024-01-01 04:00:00,104,106",
	}, "\n")

	p := NewCSVProvider(logger.Discard())
	data, err := p.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, 102.0, data[0].Close)
	assert.Equal(t, time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), data[1].Timestamp)
	assert.NoError(t, p.ValidateData(data))
}

// TestCSVProvider_UnixMillis tests the millisecond timestamp format
func TestCSVProvider_UnixMillis(t *testing.T) {
	csvData := "start,open,high,low,close,volume\n1704067200000,100,101,99,100,1\n"

	p := NewCSVProviderWithFormat(UnixMillisCSVFormat, logger.Discard())
	data, err := p.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), data[0].Timestamp)
}

// TestCSVProvider_MissingFile tests that a missing file is an error
func TestCSVProvider_MissingFile(t *testing.T) {
	_, err := NewCSVProvider(logger.Discard()).LoadData(filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestFilterByPeriod tests trimming to the trailing period
func TestFilterByPeriod(t *testing.T) {
	data := hourly(100)

	tests := []struct {
		name   string
		period time.Duration
		want   int
	}{
		{"ten hours", 10 * time.Hour, 11},
		{"longer than data", 1000 * time.Hour, 100},
		{"zero keeps all", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterByPeriod(data, tt.period)
			assert.Len(t, out, tt.want)
			assert.Equal(t, data[len(data)-1], out[len(out)-1])
		})
	}
	assert.Len(t, FilterByLookbackDays(data, 1), 25)
}

// TestNormalize tests sorting and duplicate removal
func TestNormalize(t *testing.T) {
	data := hourly(3)
	shuffled := []types.OHLCV{data[2], data[0], data[1], data[0]}

	out := Normalize(shuffled)
	assert.Equal(t, data, out)
	assert.NoError(t, ValidateTimeSequence(out))
	assert.Error(t, ValidateTimeSequence(shuffled))
}

// TestRollingWindow tests sliding and clamping at the end of the data
func TestRollingWindow(t *testing.T) {
	data := hourly(100)
	w, err := NewRollingWindow(data, 40, 25)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := w.Window(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, data[0], first[0])

	second, err := w.Window(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, data[50], second[0])

	clamped, err := w.Window(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, clamped, 40)
	assert.Equal(t, data[99], clamped[39])

	_, err = NewRollingWindow(data, 200, 1)
	assert.Error(t, err)
}

// TestStaticWindow tests that every generation sees the same data
func TestStaticWindow(t *testing.T) {
	data := hourly(10)
	w := NewStaticWindow(data)

	a, err := w.Window(context.Background(), 0)
	require.NoError(t, err)
	b, err := w.Window(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Window(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestSynthetic tests reproducibility and candle validity
func TestSynthetic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Synthetic(3, 500, start, time.Hour)
	b := Synthetic(3, 500, start, time.Hour)

	assert.Equal(t, a, b)
	assert.NoError(t, NewCSVProvider(logger.Discard()).ValidateData(a))
}

// TestConvertIntervalToMinutes tests interval conversion
func TestConvertIntervalToMinutes(t *testing.T) {
	assert.Equal(t, "5", ConvertIntervalToMinutes("5m"))
	assert.Equal(t, "60", ConvertIntervalToMinutes("1h"))
	assert.Equal(t, "1440", ConvertIntervalToMinutes("1d"))
	assert.Equal(t, "15", ConvertIntervalToMinutes("15"))
}

// TestFindDataFile tests the directory layout lookup
func TestFindDataFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bybit", "linear", "BTCUSDT", "60")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "candles.csv"), nil, 0644))

	path, attempted := FindDataFile(root, "bybit", "btcusdt", "1h")
	assert.Equal(t, filepath.Join(dir, "candles.csv"), path)
	assert.Len(t, attempted, 2)

	path, _ = FindDataFile(root, "binance", "ETHUSDT", "1h")
	assert.Empty(t, path)
}
