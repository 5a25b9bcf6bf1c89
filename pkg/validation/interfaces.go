package validation

import (
	"time"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// Package validation scores evolved genomes on market data they were not evolved on

// GenomeValidator defines the interface for out-of-sample validation of a genome
type GenomeValidator interface {
	Compare(g *genome.StrategyGenome, train, test []types.OHLCV) (*Summary, error)
	WalkForward(g *genome.StrategyGenome, data []types.OHLCV, cfg WalkForwardConfig) (*Summary, error)
}

// DataSplitter defines the interface for splitting data into train/test sets
type DataSplitter interface {
	SplitByRatio(data []types.OHLCV, ratio float64) ([]types.OHLCV, []types.OHLCV)
	CreateRollingFolds(data []types.OHLCV, trainDays, testDays, rollDays int) []Fold
}

// WalkForwardConfig holds the configuration for rolling validation
type WalkForwardConfig struct {
	TrainDays int
	TestDays  int
	RollDays  int
}

// Fold is one train/test pair of a validation
type Fold struct {
	Train      []types.OHLCV
	Test       []types.OHLCV
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// FoldResult holds the evaluations of one fold
type FoldResult struct {
	Fold      int                     `json:"fold"`
	TestStart time.Time               `json:"test_start"`
	TestEnd   time.Time               `json:"test_end"`
	Train     *backtest.FitnessResult `json:"train,omitempty"`
	Test      *backtest.FitnessResult `json:"test,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Overfitting risk levels
const (
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

// Summary aggregates the folds of one genome. Averages cover the folds that evaluated on both sides.
type Summary struct {
	GenomeID           string       `json:"genome_id"`
	Results            []FoldResult `json:"results"`
	AverageTrainSharpe float64      `json:"average_train_sharpe"`
	AverageTestSharpe  float64      `json:"average_test_sharpe"`
	AverageTrainReturn float64      `json:"average_train_return"`
	AverageTestReturn  float64      `json:"average_test_return"`
	TestReturnStdDev   float64      `json:"test_return_std_dev"`
	AverageTestMDD     float64      `json:"average_test_max_drawdown"`
	ReturnDegradation  float64      `json:"return_degradation_pct"`
	PassRate           float64      `json:"pass_rate"`
	IsRobust           bool         `json:"is_robust"`
	OverfittingRisk    string       `json:"overfitting_risk"`
}
