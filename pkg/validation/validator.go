package validation

import (
	"math"

	"github.com/samber/lo"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// Degradation bounds, in percent of the train return, for the overfitting risk levels
const (
	moderateDegradation = 15.0
	highDegradation     = 30.0
)

// Validator evaluates a fixed genome on train and test data and compares the two
type Validator struct {
	evaluator  backtest.GenomeEvaluator
	thresholds backtest.Thresholds
	splitter   DataSplitter
}

// NewValidator creates a validator; thresholds decide the pass rate of the test results
func NewValidator(evaluator backtest.GenomeEvaluator, thresholds backtest.Thresholds) *Validator {
	return &Validator{
		evaluator:  evaluator,
		thresholds: thresholds,
		splitter:   NewDefaultDataSplitter(),
	}
}

// Holdout splits data by ratio and compares the genome on both parts
func (v *Validator) Holdout(g *genome.StrategyGenome, data []types.OHLCV, ratio float64) (*Summary, error) {
	train, test := v.splitter.SplitByRatio(data, ratio)
	if len(test) == 0 {
		return nil, everrors.NewValidationError("validator", "Holdout", "split ratio %v leaves no test data out of %d bars", ratio, len(data))
	}
	return v.Compare(g, train, test)
}

// Compare evaluates the genome on a single train/test pair
func (v *Validator) Compare(g *genome.StrategyGenome, train, test []types.OHLCV) (*Summary, error) {
	if len(train) == 0 || len(test) == 0 {
		return nil, everrors.NewInsufficientDataError("validator", "Compare", min(len(train), len(test)), 1)
	}
	fold := Fold{
		Train:      train,
		Test:       test,
		TrainStart: train[0].Timestamp,
		TrainEnd:   train[len(train)-1].Timestamp,
		TestStart:  test[0].Timestamp,
		TestEnd:    test[len(test)-1].Timestamp,
	}
	return v.evaluateFolds(g, []Fold{fold})
}

// WalkForward evaluates the genome on rolling folds
func (v *Validator) WalkForward(g *genome.StrategyGenome, data []types.OHLCV, cfg WalkForwardConfig) (*Summary, error) {
	folds := v.splitter.CreateRollingFolds(data, cfg.TrainDays, cfg.TestDays, cfg.RollDays)
	if len(folds) == 0 {
		return nil, everrors.NewValidationError("validator", "WalkForward",
			"no folds of %d train and %d test days fit %d bars", cfg.TrainDays, cfg.TestDays, len(data))
	}
	return v.evaluateFolds(g, folds)
}

func (v *Validator) evaluateFolds(g *genome.StrategyGenome, folds []Fold) (*Summary, error) {
	results := make([]FoldResult, 0, len(folds))
	var lastErr error
	for i, fold := range folds {
		result := FoldResult{Fold: i + 1, TestStart: fold.TestStart, TestEnd: fold.TestEnd}

		train, err := v.evaluator.Evaluate(g, fold.Train)
		if err == nil {
			result.Train = &train
			var test backtest.FitnessResult
			if test, err = v.evaluator.Evaluate(g, fold.Test); err == nil {
				result.Test = &test
			}
		}
		if err != nil {
			result.Error = err.Error()
			lastErr = err
		}
		results = append(results, result)
	}

	summary := v.calculateSummary(g.ID(), results)
	if summary.completed() == 0 {
		return summary, lastErr
	}
	return summary, nil
}

func (s *Summary) completed() int {
	return lo.CountBy(s.Results, func(r FoldResult) bool {
		return r.Train != nil && r.Test != nil
	})
}

// calculateSummary averages the folds evaluated on both sides; returns are in percent
func (v *Validator) calculateSummary(genomeID string, results []FoldResult) *Summary {
	summary := &Summary{GenomeID: genomeID, Results: results}

	complete := lo.Filter(results, func(r FoldResult, _ int) bool {
		return r.Train != nil && r.Test != nil
	})
	if len(complete) == 0 {
		summary.OverfittingRisk = RiskHigh
		return summary
	}

	trainReturns := lo.Map(complete, func(r FoldResult, _ int) float64 { return r.Train.TotalReturn * 100 })
	testReturns := lo.Map(complete, func(r FoldResult, _ int) float64 { return r.Test.TotalReturn * 100 })

	summary.AverageTrainSharpe = average(lo.Map(complete, func(r FoldResult, _ int) float64 { return r.Train.SharpeRatio }))
	summary.AverageTestSharpe = average(lo.Map(complete, func(r FoldResult, _ int) float64 { return r.Test.SharpeRatio }))
	summary.AverageTrainReturn = average(trainReturns)
	summary.AverageTestReturn = average(testReturns)
	summary.TestReturnStdDev = stdDev(testReturns)
	summary.AverageTestMDD = average(lo.Map(complete, func(r FoldResult, _ int) float64 { return r.Test.MaxDrawdown * 100 }))

	passed := lo.CountBy(complete, func(r FoldResult) bool { return v.thresholds.Meets(*r.Test) })
	summary.PassRate = float64(passed) / float64(len(complete))

	summary.ReturnDegradation = ((summary.AverageTrainReturn - summary.AverageTestReturn) /
		math.Max(0.01, math.Abs(summary.AverageTrainReturn))) * 100

	switch {
	case summary.ReturnDegradation > highDegradation:
		summary.OverfittingRisk = RiskHigh
	case summary.ReturnDegradation > moderateDegradation:
		summary.OverfittingRisk = RiskModerate
	default:
		summary.OverfittingRisk = RiskLow
	}
	summary.IsRobust = summary.ReturnDegradation <= highDegradation
	return summary
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	avg := average(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}
