package validation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// trendEvaluator scores a window by its close-to-close return
type trendEvaluator struct {
	minBars int
}

func (e trendEvaluator) Evaluate(g *genome.StrategyGenome, window []types.OHLCV) (backtest.FitnessResult, error) {
	if len(window) < e.minBars {
		return backtest.FitnessResult{}, everrors.NewInsufficientDataError("test", "Evaluate", len(window), e.minBars)
	}
	ret := window[len(window)-1].Close/window[0].Close - 1
	return backtest.FitnessResult{
		GenomeID:     g.ID(),
		SharpeRatio:  ret * 10,
		ProfitFactor: 2,
		MaxDrawdown:  0.05,
		TotalReturn:  ret,
		NumTrades:    3,
	}, nil
}

func hourlyBars(closes ...float64) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return bars
}

func linearBars(n int, from, step float64) []types.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + float64(i)*step
	}
	return hourlyBars(closes...)
}

func geometricBars(n int, from, rate float64) []types.OHLCV {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from * math.Pow(1+rate, float64(i))
	}
	return hourlyBars(closes...)
}

func testGenome(t *testing.T) *genome.StrategyGenome {
	t.Helper()
	g, err := genome.New([]genome.Indicator{{
		Type:       genome.IndicatorSMA,
		Parameters: map[string]float64{"period": 10},
		Weight:     1,
	}}, genome.RiskParams{MaxPositionSizePct: 0.1, MaxDrawdownPct: 0.25, StopLossPct: 0.02}, 0, nil)
	require.NoError(t, err)
	return g
}

var lenientThresholds = backtest.Thresholds{MinSharpeRatio: 0, MinProfitFactor: 1, MaxMDDThreshold: 0.2}

// TestSplitByRatio tests the train/test split and its degenerate ratios
func TestSplitByRatio(t *testing.T) {
	data := linearBars(10, 100, 1)

	train, test := SplitByRatio(data, 0.7)
	assert.Len(t, train, 7)
	assert.Len(t, test, 3)
	assert.Equal(t, data[7], test[0])

	for _, ratio := range []float64{0, 1, -0.5, 0.05} {
		train, test = SplitByRatio(data, ratio)
		assert.Len(t, train, 10, "ratio %v", ratio)
		assert.Nil(t, test, "ratio %v", ratio)
	}
}

// TestCreateRollingFolds tests fold boundaries of a daily walk forward
func TestCreateRollingFolds(t *testing.T) {
	data := linearBars(24*10, 100, 0.1)
	splitter := &DefaultDataSplitter{MinTrainBars: 24, MinTestBars: 12}

	folds := splitter.CreateRollingFolds(data, 3, 1, 2)
	require.Len(t, folds, 4)
	for i, fold := range folds {
		assert.Len(t, fold.Train, 72, "fold %d", i)
		assert.Len(t, fold.Test, 24, "fold %d", i)
		assert.True(t, fold.TestStart.After(fold.TrainEnd))
	}
	assert.Equal(t, data[48].Timestamp, folds[1].TrainStart)
}

// TestCreateRollingFolds_TooShort tests that no fold is produced when the data is too short
func TestCreateRollingFolds_TooShort(t *testing.T) {
	assert.Empty(t, CreateRollingFolds(linearBars(30, 100, 1), 3, 1, 1))
	assert.Empty(t, CreateRollingFolds(nil, 3, 1, 1))
	assert.Empty(t, CreateRollingFolds(linearBars(500, 100, 1), 0, 1, 1))
}

// TestValidator_HoldoutDegradation tests a genome that gains in train and loses in test
func TestValidator_HoldoutDegradation(t *testing.T) {
	closes := make([]float64, 0, 100)
	for i := 0; i < 80; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 179-float64(i))
	}
	data := hourlyBars(closes...)
	v := NewValidator(trendEvaluator{minBars: 5}, lenientThresholds)
	g := testGenome(t)

	summary, err := v.Holdout(g, data, 0.8)
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, g.ID(), summary.GenomeID)
	assert.Greater(t, summary.AverageTrainReturn, 0.0)
	assert.Less(t, summary.AverageTestReturn, 0.0)
	assert.Greater(t, summary.ReturnDegradation, highDegradation)
	assert.Equal(t, RiskHigh, summary.OverfittingRisk)
	assert.False(t, summary.IsRobust)
	assert.Zero(t, summary.PassRate)
}

// TestValidator_CompareConsistent tests a genome that performs alike on both sides
func TestValidator_CompareConsistent(t *testing.T) {
	data := geometricBars(100, 100, 0.01)
	train, test := SplitByRatio(data, 0.5)
	v := NewValidator(trendEvaluator{minBars: 5}, lenientThresholds)

	summary, err := v.Compare(testGenome(t), train, test)
	require.NoError(t, err)

	assert.Greater(t, summary.AverageTestReturn, 0.0)
	assert.Equal(t, RiskLow, summary.OverfittingRisk)
	assert.True(t, summary.IsRobust)
	assert.Equal(t, 1.0, summary.PassRate)
}

// TestValidator_InsufficientTestData tests that a test side too short to evaluate is an error
func TestValidator_InsufficientTestData(t *testing.T) {
	data := linearBars(100, 100, 1)
	v := NewValidator(trendEvaluator{minBars: 30}, lenientThresholds)

	summary, err := v.Holdout(testGenome(t), data, 0.9)
	assert.ErrorIs(t, err, everrors.ErrInsufficientData)
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.Results[0].Error)
	assert.Nil(t, summary.Results[0].Test)
}

// TestValidator_HoldoutRejectsRatio tests the error for a ratio that leaves no test data
func TestValidator_HoldoutRejectsRatio(t *testing.T) {
	v := NewValidator(trendEvaluator{minBars: 5}, lenientThresholds)
	_, err := v.Holdout(testGenome(t), linearBars(50, 100, 1), 1)
	assert.ErrorIs(t, err, everrors.ErrValidation)
}

// TestValidator_WalkForward tests averaging across rolling folds
func TestValidator_WalkForward(t *testing.T) {
	data := linearBars(24*10, 100, 0.5)
	v := NewValidator(trendEvaluator{minBars: 5}, lenientThresholds)

	summary, err := v.WalkForward(testGenome(t), data, WalkForwardConfig{TrainDays: 4, TestDays: 2, RollDays: 2})
	require.NoError(t, err)

	assert.Len(t, summary.Results, 3)
	assert.Greater(t, summary.AverageTestReturn, 0.0)
	assert.Greater(t, summary.TestReturnStdDev, 0.0)

	_, err = v.WalkForward(testGenome(t), data[:30], WalkForwardConfig{TrainDays: 4, TestDays: 2, RollDays: 2})
	assert.ErrorIs(t, err, everrors.ErrValidation)
}
