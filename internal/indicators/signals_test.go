package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

func seriesFromCloses(closes []float64) types.Series {
	data := make([]types.OHLCV, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		data[i] = types.OHLCV{
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    1000,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return types.ToSeries(data)
}

func flatSeries(n int, price float64) types.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	s := seriesFromCloses(closes)
	copy(s.High, s.Close)
	copy(s.Low, s.Close)
	return s
}

func linearSeries(n int, start, step float64) types.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return seriesFromCloses(closes)
}

func allTypesIndicators() []genome.Indicator {
	return []genome.Indicator{
		{Type: genome.IndicatorSMA, Parameters: map[string]float64{"period": 10}, Weight: 1},
		{Type: genome.IndicatorEMA, Parameters: map[string]float64{"period": 10}, Weight: 1},
		{Type: genome.IndicatorRSI, Parameters: map[string]float64{"period": 14, "oversold": 30, "overbought": 70}, Weight: 1},
		{Type: genome.IndicatorMACD, Parameters: map[string]float64{"fast": 12, "slow": 26, "signal": 9}, Weight: 1},
		{Type: genome.IndicatorBBands, Parameters: map[string]float64{"period": 20, "stddev": 2}, Weight: 1},
		{Type: genome.IndicatorATR, Parameters: map[string]float64{"period": 14, "multiplier": 1.5}, Weight: 1},
		{Type: genome.IndicatorStoch, Parameters: map[string]float64{"k_period": 14, "d_period": 3, "oversold": 20, "overbought": 80}, Weight: 1},
	}
}

// TestSignals_FlatSeriesIsNeutral tests that a constant price produces no signal for any indicator
func TestSignals_FlatSeriesIsNeutral(t *testing.T) {
	s := flatSeries(120, 100)

	for _, ind := range allTypesIndicators() {
		t.Run(string(ind.Type), func(t *testing.T) {
			sig, err := Signals(ind, s)
			require.NoError(t, err)
			require.Len(t, sig, 120)
			for i, v := range sig {
				assert.Equal(t, SignalNeutral, v, "bar %d", i)
			}
		})
	}
}

// TestSignals_SMAUptrend tests that price above a rising average is long after warm-up
func TestSignals_SMAUptrend(t *testing.T) {
	s := linearSeries(60, 100, 1)
	ind := genome.Indicator{Type: genome.IndicatorSMA, Parameters: map[string]float64{"period": 10}, Weight: 1}

	sig, err := Signals(ind, s)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		assert.Equal(t, SignalNeutral, sig[i])
	}
	for i := 9; i < len(sig); i++ {
		assert.Equal(t, SignalLong, sig[i], "bar %d", i)
	}
}

// TestSignals_RSIDowntrendIsOversold tests that a steady decline reads as oversold
func TestSignals_RSIDowntrendIsOversold(t *testing.T) {
	s := linearSeries(60, 200, -1)
	ind := genome.Indicator{Type: genome.IndicatorRSI, Parameters: map[string]float64{"period": 14, "oversold": 30, "overbought": 70}, Weight: 1}

	sig, err := Signals(ind, s)
	require.NoError(t, err)
	assert.Equal(t, SignalLong, sig[len(sig)-1])
}

// TestSignals_MACDUptrend tests that an accelerating rise gives a positive histogram
func TestSignals_MACDUptrend(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 0.05*float64(i*i)
	}
	ind := genome.Indicator{Type: genome.IndicatorMACD, Parameters: map[string]float64{"fast": 12, "slow": 26, "signal": 9}, Weight: 1}

	sig, err := Signals(ind, seriesFromCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, SignalLong, sig[len(sig)-1])
}

// TestSignals_BBandsBreakBelow tests that a sharp drop under the lower band is a long signal
func TestSignals_BBandsBreakBelow(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	closes[39] = 80
	ind := genome.Indicator{Type: genome.IndicatorBBands, Parameters: map[string]float64{"period": 20, "stddev": 2}, Weight: 1}

	sig, err := Signals(ind, seriesFromCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, SignalLong, sig[39])
	assert.Equal(t, SignalNeutral, sig[38])
}

// TestSignals_InsufficientData tests that a series shorter than the warm-up is rejected
func TestSignals_InsufficientData(t *testing.T) {
	s := linearSeries(20, 100, 1)
	ind := genome.Indicator{Type: genome.IndicatorSMA, Parameters: map[string]float64{"period": 50}, Weight: 1}

	_, err := Signals(ind, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient data")
}

// TestComposite_WeightedAverage tests sum(w*s)/sum(w) with opposing signals
func TestComposite_WeightedAverage(t *testing.T) {
	s := linearSeries(60, 100, 1)
	inds := []genome.Indicator{
		{Type: genome.IndicatorSMA, Parameters: map[string]float64{"period": 10}, Weight: 3},
		{Type: genome.IndicatorRSI, Parameters: map[string]float64{"period": 14, "oversold": 30, "overbought": 70}, Weight: 1},
	}

	composite, err := Composite(inds, s)
	require.NoError(t, err)
	// uptrend: SMA long (+1 * 3), RSI overbought (-1 * 1)
	assert.InDelta(t, 0.5, composite[len(composite)-1], 1e-12)
}

// TestComposite_Deterministic tests that repeated calls give identical output
func TestComposite_Deterministic(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 10*float64((i*37)%17) - float64(i%5)
	}
	s := seriesFromCloses(closes)

	a, err := Composite(allTypesIndicators(), s)
	require.NoError(t, err)
	b, err := Composite(allTypesIndicators(), s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
