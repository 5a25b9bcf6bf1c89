package backtest

import (
	"fmt"
	"time"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/indicators"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// EntryThreshold is the composite signal level that opens (above) or closes (below its negative) a position
const EntryThreshold = 0.25

// GenomeEvaluator scores a genome against a market window
type GenomeEvaluator interface {
	Evaluate(g *genome.StrategyGenome, window []types.OHLCV) (FitnessResult, error)
}

// Evaluator is a deterministic long-only backtester. It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	minDataPoints  int
	minSpan        time.Duration
	periodsPerYear float64
}

// NewEvaluator creates an evaluator requiring at least minDataPoints bars per window, spanning at
// least minSpan from the first to the last bar. A zero minSpan disables the span check.
func NewEvaluator(minDataPoints int, minSpan time.Duration, periodsPerYear float64) *Evaluator {
	if minDataPoints < 1 {
		minDataPoints = 1
	}
	if minSpan < 0 {
		minSpan = 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 1
	}
	return &Evaluator{
		minDataPoints:  minDataPoints,
		minSpan:        minSpan,
		periodsPerYear: periodsPerYear,
	}
}

// RequiredBars is the minimum window length the genome can be evaluated on
func (e *Evaluator) RequiredBars(g *genome.StrategyGenome) int {
	need := g.MaxLookback() + 2
	if e.minDataPoints > need {
		need = e.minDataPoints
	}
	return need
}

// Evaluate backtests the genome on the window. It reads no clock and uses no randomness.
func (e *Evaluator) Evaluate(g *genome.StrategyGenome, window []types.OHLCV) (FitnessResult, error) {
	if need := e.RequiredBars(g); len(window) < need {
		return FitnessResult{}, everrors.NewInsufficientDataError("evaluator", "Evaluate", len(window), need).
			WithContext("genome_id", g.ID())
	}
	if span := window[len(window)-1].Timestamp.Sub(window[0].Timestamp); span < e.minSpan {
		return FitnessResult{}, everrors.NewInsufficientSpanError("evaluator", "Evaluate", span, e.minSpan).
			WithContext("genome_id", g.ID())
	}

	series := types.ToSeries(window)
	composite, err := indicators.Composite(g.Indicators(), series)
	if err != nil {
		return FitnessResult{}, everrors.NewValidationError("evaluator", "Evaluate", "computing signals for %s: %v", g.ID(), err)
	}

	sim := simulate(series.Close, composite, g.MaxLookback(), g.Risk())
	if len(sim.equity) == 0 {
		return FitnessResult{}, fmt.Errorf("evaluator produced an empty equity curve for %s", g.ID())
	}

	key := WindowKey(window)
	maxDD := CalculateMaxDrawdown(sim.equity)
	return FitnessResult{
		ID:               resultID(g.ID(), key),
		GenomeID:         g.ID(),
		WindowKey:        key,
		SharpeRatio:      CalculateSharpeRatio(EquityReturns(sim.equity), e.periodsPerYear),
		ProfitFactor:     CalculateProfitFactor(sim.trades),
		MaxDrawdown:      maxDD,
		TotalReturn:      sim.equity[len(sim.equity)-1]/sim.equity[0] - 1,
		NumTrades:        len(sim.trades),
		DrawdownBreached: maxDD > g.Risk().MaxDrawdownPct,
		EvaluatedAt:      window[len(window)-1].Timestamp,
	}, nil
}

type simulation struct {
	equity []float64
	trades []Trade
}

// simulate trades from bar start onward with a normalized starting equity of 1.
// Entries and exits fill at the bar close.
func simulate(closes, composite []float64, start int, risk genome.RiskParams) simulation {
	cash := 1.0
	units := 0.0
	var open *Trade

	sim := simulation{equity: make([]float64, 0, len(closes)-start)}
	last := len(closes) - 1

	for i := start; i <= last; i++ {
		price := closes[i]

		if open != nil {
			stopHit := price <= open.EntryPrice*(1-risk.StopLossPct)
			if stopHit || composite[i] < -EntryThreshold || i == last {
				cash += units * price
				open.ExitIndex = i
				open.ExitPrice = price
				open.PnL = units * (price - open.EntryPrice)
				open.StopLoss = stopHit
				sim.trades = append(sim.trades, *open)
				open = nil
				units = 0
			}
		} else if composite[i] > EntryThreshold && i < last && price > 0 {
			notional := cash * risk.MaxPositionSizePct
			units = notional / price
			cash -= notional
			open = &Trade{EntryIndex: i, EntryPrice: price, Units: units}
		}

		sim.equity = append(sim.equity, cash+units*price)
	}
	return sim
}
