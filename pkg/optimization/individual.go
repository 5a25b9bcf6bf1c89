package optimization

import (
	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
)

// Member is a genome in the current generation with its latest evaluation
type Member struct {
	Genome *genome.StrategyGenome
	Result *backtest.FitnessResult
	Err    error
}

// Evaluated reports whether the member has a usable fitness result
func (m Member) Evaluated() bool {
	return m.Result != nil && m.Err == nil
}

// EvaluatedOn reports whether the member already has a result for the window
func (m Member) EvaluatedOn(windowKey string) bool {
	return m.Evaluated() && m.Result.WindowKey == windowKey
}

// Failed reports whether the last evaluation failed
func (m Member) Failed() bool {
	return m.Err != nil
}

// Fitness is the composite score, 0 for unevaluated or failed members
func (m Member) Fitness() float64 {
	if !m.Evaluated() {
		return 0
	}
	return m.Result.Composite()
}

// ID returns the genome id
func (m Member) ID() string {
	return m.Genome.ID()
}
