package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// StaticWindow evaluates every generation against the same candles
type StaticWindow struct {
	data []types.OHLCV
}

// NewStaticWindow creates a window source over data
func NewStaticWindow(data []types.OHLCV) *StaticWindow {
	return &StaticWindow{data: data}
}

func (w *StaticWindow) Window(ctx context.Context, _ int) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(w.data) == 0 {
		return nil, fmt.Errorf("static window is empty")
	}
	return w.data, nil
}

// RollingWindow slides a fixed-size window forward by step bars per generation.
// Once the end of the data is reached the last full window is reused.
type RollingWindow struct {
	data []types.OHLCV
	size int
	step int
}

// NewRollingWindow creates a rolling window source
func NewRollingWindow(data []types.OHLCV, size, step int) (*RollingWindow, error) {
	if size < 1 || step < 0 {
		return nil, fmt.Errorf("rolling window needs size >= 1 and step >= 0, got size=%d step=%d", size, step)
	}
	if len(data) < size {
		return nil, fmt.Errorf("rolling window of %d bars needs more data, have %d", size, len(data))
	}
	return &RollingWindow{data: data, size: size, step: step}, nil
}

func (w *RollingWindow) Window(ctx context.Context, generation int) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if generation < 0 {
		return nil, fmt.Errorf("generation must be non-negative, got %d", generation)
	}
	lastStart := len(w.data) - w.size
	start := generation * w.step
	if start > lastStart {
		start = lastStart
	}
	return w.data[start : start+w.size], nil
}

// Synthetic generates a reproducible random-walk candle series
func Synthetic(seed int64, bars int, start time.Time, interval time.Duration) []types.OHLCV {
	rng := rand.New(rand.NewSource(seed))
	data := make([]types.OHLCV, bars)
	price := 30000.0
	const volatility = 0.01

	for i := range data {
		open := price
		drift := math.Sin(float64(i)/200) * 0.001
		price = math.Max(open*(1+drift+rng.NormFloat64()*volatility), 1)

		high := math.Max(open, price) * (1 + rng.Float64()*0.005)
		low := math.Min(open, price) * (1 - rng.Float64()*0.005)
		data[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    rng.Float64() * 1000,
		}
	}
	return data
}
