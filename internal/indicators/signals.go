package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// Signal values emitted per bar
const (
	SignalLong    = 1.0
	SignalNeutral = 0.0
	SignalShort   = -1.0
)

// relative tolerance below which two prices are treated as equal
const flatEpsilon = 1e-9

// SignalFunc maps one indicator over a series to a per-bar signal in {-1, 0, +1}.
// The returned slice has the length of the series; bars before the warm-up are neutral.
type SignalFunc func(ind genome.Indicator, s types.Series) []float64

var registry = map[genome.IndicatorType]SignalFunc{
	genome.IndicatorSMA:    smaSignals,
	genome.IndicatorEMA:    emaSignals,
	genome.IndicatorRSI:    rsiSignals,
	genome.IndicatorMACD:   macdSignals,
	genome.IndicatorBBands: bbandsSignals,
	genome.IndicatorATR:    atrSignals,
	genome.IndicatorStoch:  stochSignals,
}

// Signals computes the signal series of a single indicator
func Signals(ind genome.Indicator, s types.Series) ([]float64, error) {
	fn, ok := registry[ind.Type]
	if !ok {
		return nil, fmt.Errorf("no signal rule for indicator type %q", ind.Type)
	}
	if len(s.Close) <= ind.Lookback() {
		return nil, fmt.Errorf("insufficient data for %s: have %d bars, need more than %d", ind.Type, len(s.Close), ind.Lookback())
	}
	return fn(ind, s), nil
}

// Composite combines the indicator signals as sum(w*s)/sum(w) per bar
func Composite(inds []genome.Indicator, s types.Series) ([]float64, error) {
	if len(inds) == 0 {
		return nil, fmt.Errorf("no indicators to combine")
	}
	out := make([]float64, len(s.Close))
	totalWeight := 0.0
	for _, ind := range inds {
		sig, err := Signals(ind, s)
		if err != nil {
			return nil, err
		}
		for i, v := range sig {
			out[i] += ind.Weight * v
		}
		totalWeight += ind.Weight
	}
	if totalWeight <= 0 {
		return nil, fmt.Errorf("total indicator weight must be positive")
	}
	for i := range out {
		out[i] /= totalWeight
	}
	return out, nil
}

func smaSignals(ind genome.Indicator, s types.Series) []float64 {
	period := ind.IntParam("period")
	return crossSignals(s.Close, talib.Sma(s.Close, period), period-1)
}

func emaSignals(ind genome.Indicator, s types.Series) []float64 {
	period := ind.IntParam("period")
	return crossSignals(s.Close, talib.Ema(s.Close, period), period-1)
}

// crossSignals is +1 while price is above its moving average and -1 while below
func crossSignals(close, ma []float64, start int) []float64 {
	out := make([]float64, len(close))
	for i := start; i < len(close); i++ {
		out[i] = compare(close[i], ma[i])
	}
	return out
}

func rsiSignals(ind genome.Indicator, s types.Series) []float64 {
	period := ind.IntParam("period")
	oversold, overbought := ind.Param("oversold"), ind.Param("overbought")
	rsi := talib.Rsi(s.Close, period)

	out := make([]float64, len(s.Close))
	for i := period; i < len(s.Close); i++ {
		if isFlat(s.Close, s.Close, i-period, i) {
			continue
		}
		out[i] = oscillatorSignal(rsi[i], oversold, overbought)
	}
	return out
}

func macdSignals(ind genome.Indicator, s types.Series) []float64 {
	fast, slow, signal := ind.IntParam("fast"), ind.IntParam("slow"), ind.IntParam("signal")
	_, _, hist := talib.Macd(s.Close, fast, slow, signal)

	out := make([]float64, len(s.Close))
	for i := slow + signal - 2; i < len(s.Close); i++ {
		if math.Abs(hist[i]) <= flatEpsilon*math.Abs(s.Close[i]) {
			continue
		}
		if hist[i] > 0 {
			out[i] = SignalLong
		} else {
			out[i] = SignalShort
		}
	}
	return out
}

// bbandsSignals is mean reversion: long below the lower band, short above the upper band
func bbandsSignals(ind genome.Indicator, s types.Series) []float64 {
	period := ind.IntParam("period")
	dev := ind.Param("stddev")
	upper, _, lower := talib.BBands(s.Close, period, dev, dev, talib.SMA)

	out := make([]float64, len(s.Close))
	for i := period - 1; i < len(s.Close); i++ {
		switch {
		case compare(s.Close[i], lower[i]) < 0:
			out[i] = SignalLong
		case compare(s.Close[i], upper[i]) > 0:
			out[i] = SignalShort
		}
	}
	return out
}

// atrSignals is a volatility breakout: a close-to-close move larger than multiplier*ATR
func atrSignals(ind genome.Indicator, s types.Series) []float64 {
	period := ind.IntParam("period")
	mult := ind.Param("multiplier")
	atr := talib.Atr(s.High, s.Low, s.Close, period)

	out := make([]float64, len(s.Close))
	for i := period; i < len(s.Close); i++ {
		move := s.Close[i] - s.Close[i-1]
		band := mult * atr[i]
		if math.Abs(move) <= flatEpsilon*math.Abs(s.Close[i]) {
			continue
		}
		switch {
		case move > band:
			out[i] = SignalLong
		case move < -band:
			out[i] = SignalShort
		}
	}
	return out
}

func stochSignals(ind genome.Indicator, s types.Series) []float64 {
	kPeriod, dPeriod := ind.IntParam("k_period"), ind.IntParam("d_period")
	oversold, overbought := ind.Param("oversold"), ind.Param("overbought")
	slowK, _ := talib.Stoch(s.High, s.Low, s.Close, kPeriod, dPeriod, talib.SMA, dPeriod, talib.SMA)

	out := make([]float64, len(s.Close))
	for i := kPeriod + 2*(dPeriod-1) - 1; i < len(s.Close); i++ {
		if isFlat(s.High, s.Low, i-kPeriod+1, i) {
			continue
		}
		out[i] = oscillatorSignal(slowK[i], oversold, overbought)
	}
	return out
}

func oscillatorSignal(v, oversold, overbought float64) float64 {
	switch {
	case v < oversold:
		return SignalLong
	case v > overbought:
		return SignalShort
	default:
		return SignalNeutral
	}
}

// compare returns the sign of a-b, treating values within the relative tolerance as equal
func compare(a, b float64) float64 {
	diff := a - b
	if math.IsNaN(diff) || math.Abs(diff) <= flatEpsilon*math.Max(math.Abs(a), math.Abs(b)) {
		return SignalNeutral
	}
	if diff > 0 {
		return SignalLong
	}
	return SignalShort
}

// isFlat reports whether highs and lows over [from, to] span a zero range
func isFlat(high, low []float64, from, to int) bool {
	if from < 0 {
		from = 0
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for i := from; i <= to; i++ {
		hi = math.Max(hi, high[i])
		lo = math.Min(lo, low[i])
	}
	return hi-lo <= flatEpsilon*math.Abs(hi)
}
