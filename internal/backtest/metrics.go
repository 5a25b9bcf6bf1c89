package backtest

import (
	"math"
)

// stdDev below which returns are treated as constant
const minVolatility = 1e-10

// Trade is a closed long position
type Trade struct {
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	Units      float64
	PnL        float64
	StopLoss   bool
}

// EquityReturns converts an equity curve into per-period simple returns
func EquityReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}
	return returns
}

// CalculateSharpeRatio is mean/stddev of the returns scaled by sqrt(periodsPerYear), 0 for constant returns
func CalculateSharpeRatio(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	avgReturn := 0.0
	for _, r := range returns {
		avgReturn += r
	}
	avgReturn /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avgReturn, 2)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < minVolatility {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 1
	}
	return avgReturn / stdDev * math.Sqrt(periodsPerYear)
}

// CalculateProfitFactor is gross profit / gross loss. 0 without any P&L, MaxProfitFactor without losses.
func CalculateProfitFactor(trades []Trade) float64 {
	totalProfit := 0.0
	totalLoss := 0.0
	for _, trade := range trades {
		if trade.PnL > 0 {
			totalProfit += trade.PnL
		} else {
			totalLoss += math.Abs(trade.PnL)
		}
	}

	if totalLoss == 0 {
		if totalProfit > 0 {
			return MaxProfitFactor
		}
		return 0
	}
	return math.Min(totalProfit/totalLoss, MaxProfitFactor)
}

// CalculateMaxDrawdown is the largest peak-to-trough fractional decline of the equity curve
func CalculateMaxDrawdown(equity []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
