package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// DrawdownBreachPenalty is subtracted from the Sharpe ratio when a genome exceeds its own drawdown limit
const DrawdownBreachPenalty = 10.0

// MaxProfitFactor caps the profit factor of a result with profits and no losses
const MaxProfitFactor = 100.0

// FitnessResult is the outcome of one evaluation of a genome against one window. It is never mutated.
type FitnessResult struct {
	ID               string    `json:"id"`
	GenomeID         string    `json:"genome_id"`
	WindowKey        string    `json:"window_key"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	ProfitFactor     float64   `json:"profit_factor"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	TotalReturn      float64   `json:"total_return"`
	NumTrades        int       `json:"num_trades"`
	DrawdownBreached bool      `json:"drawdown_breached"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// Composite is the ranking score: Sharpe, less a fixed penalty when the drawdown limit was breached
func (r FitnessResult) Composite() float64 {
	if r.DrawdownBreached {
		return r.SharpeRatio - DrawdownBreachPenalty
	}
	return r.SharpeRatio
}

// Thresholds are the performance gates a result must clear
type Thresholds struct {
	MinSharpeRatio  float64 `json:"min_sharpe_ratio"`
	MinProfitFactor float64 `json:"min_profit_factor"`
	MaxMDDThreshold float64 `json:"max_mdd_threshold"`
}

// Meets reports sharpe >= min, profit factor >= min and max drawdown <= max
func (t Thresholds) Meets(r FitnessResult) bool {
	return r.SharpeRatio >= t.MinSharpeRatio &&
		r.ProfitFactor >= t.MinProfitFactor &&
		r.MaxDrawdown <= t.MaxMDDThreshold
}

// WindowKey identifies a window by its bounds and length
func WindowKey(window []types.OHLCV) string {
	if len(window) == 0 {
		return "empty"
	}
	first, last := window[0].Timestamp, window[len(window)-1].Timestamp
	return fmt.Sprintf("%d-%d-%d", first.Unix(), last.Unix(), len(window))
}

// resultID derives a stable id from the genome and window so repeated evaluations agree
func resultID(genomeID, windowKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(genomeID+"/"+windowKey)).String()
}
