package validation

import (
	"time"

	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// Minimum fold sizes accepted by the default splitter
const (
	DefaultMinTrainBars = 50
	DefaultMinTestBars  = 10
)

// DefaultDataSplitter implements the DataSplitter interface
type DefaultDataSplitter struct {
	MinTrainBars int
	MinTestBars  int
}

// NewDefaultDataSplitter creates a new default data splitter
func NewDefaultDataSplitter() *DefaultDataSplitter {
	return &DefaultDataSplitter{MinTrainBars: DefaultMinTrainBars, MinTestBars: DefaultMinTestBars}
}

// SplitByRatio returns the leading ratio of data as train and the rest as test.
// A ratio outside (0, 1) or a split leaving one side empty returns all data as train and a nil test.
func (s *DefaultDataSplitter) SplitByRatio(data []types.OHLCV, ratio float64) ([]types.OHLCV, []types.OHLCV) {
	if ratio <= 0 || ratio >= 1 {
		return data, nil
	}

	n := int(float64(len(data)) * ratio)
	if n < 1 || n >= len(data) {
		return data, nil
	}

	return data[:n], data[n:]
}

// CreateRollingFolds walks train and test windows of the given lengths forward by rollDays
func (s *DefaultDataSplitter) CreateRollingFolds(data []types.OHLCV, trainDays, testDays, rollDays int) []Fold {
	var folds []Fold
	if len(data) == 0 || trainDays < 1 || testDays < 1 || rollDays < 1 {
		return folds
	}

	trainDur := time.Duration(trainDays) * 24 * time.Hour
	testDur := time.Duration(testDays) * 24 * time.Hour
	rollDur := time.Duration(rollDays) * 24 * time.Hour

	start := 0
	for {
		trainEndTs := data[start].Timestamp.Add(trainDur)
		trainEnd := start
		for trainEnd < len(data) && data[trainEnd].Timestamp.Before(trainEndTs) {
			trainEnd++
		}

		testEndTs := trainEndTs.Add(testDur)
		testEnd := trainEnd
		for testEnd < len(data) && data[testEnd].Timestamp.Before(testEndTs) {
			testEnd++
		}

		if trainEnd-start < s.MinTrainBars || testEnd-trainEnd < s.MinTestBars {
			break
		}

		folds = append(folds, Fold{
			Train:      data[start:trainEnd],
			Test:       data[trainEnd:testEnd],
			TrainStart: data[start].Timestamp,
			TrainEnd:   data[trainEnd-1].Timestamp,
			TestStart:  data[trainEnd].Timestamp,
			TestEnd:    data[testEnd-1].Timestamp,
		})

		nextStartTs := data[start].Timestamp.Add(rollDur)
		nextStart := start
		for nextStart < len(data) && data[nextStart].Timestamp.Before(nextStartTs) {
			nextStart++
		}
		if nextStart <= start {
			nextStart = start + 1
		}
		if nextStart >= len(data) {
			break
		}
		start = nextStart
	}

	return folds
}

// SplitByRatio is a convenience function that uses the default splitter
func SplitByRatio(data []types.OHLCV, ratio float64) ([]types.OHLCV, []types.OHLCV) {
	return NewDefaultDataSplitter().SplitByRatio(data, ratio)
}

// CreateRollingFolds is a convenience function that uses the default splitter
func CreateRollingFolds(data []types.OHLCV, trainDays, testDays, rollDays int) []Fold {
	return NewDefaultDataSplitter().CreateRollingFolds(data, trainDays, testDays, rollDays)
}
