package config

import (
	"time"
)

// Storage backends accepted by PersistenceConfig.Backend
const (
	BackendMemory = "memory"
	BackendBuntDB = "buntdb"
	BackendSQLite = "sqlite"
)

// EvolutionConfig is the immutable configuration snapshot of one evolution run
type EvolutionConfig struct {
	// Population
	PopulationSize         int      `yaml:"initial_population_size" json:"initial_population_size"`
	MaxGenerations         int      `yaml:"max_generations" json:"max_generations"`
	MutationRate           float64  `yaml:"mutation_rate" json:"mutation_rate"`
	CrossoverRate          float64  `yaml:"crossover_rate" json:"crossover_rate"`
	EliteSize              int      `yaml:"elite_size" json:"elite_size"`
	ConvergenceGenerations int      `yaml:"convergence_generations" json:"convergence_generations"`
	MaxWorkers             int      `yaml:"max_workers" json:"max_workers"`
	MaxIndicators          int      `yaml:"max_indicators" json:"max_indicators"`
	DedupRetries           int      `yaml:"dedup_retries" json:"dedup_retries"`
	IndicatorTypes         []string `yaml:"indicator_types" json:"indicator_types"`
	Seed                   int64    `yaml:"seed" json:"seed"`

	// Market data
	Timeframe        string `yaml:"default_timeframe" json:"default_timeframe"`
	DataLookbackDays int    `yaml:"data_lookback_days" json:"data_lookback_days"`
	MinDataPoints    int    `yaml:"min_data_points" json:"min_data_points"`

	// Reinforcement learning rate tuning
	RLTuningEnabled  bool    `yaml:"rl_tuning_enabled" json:"rl_tuning_enabled"`
	RLLearningRate   float64 `yaml:"rl_learning_rate" json:"rl_learning_rate"`
	RLDiscountFactor float64 `yaml:"rl_discount_factor" json:"rl_discount_factor"`
	RLEpisodes       int     `yaml:"rl_episodes" json:"rl_episodes"`

	Risk        RiskDefaults          `yaml:"risk" json:"risk"`
	Thresholds  PerformanceThresholds `yaml:"thresholds" json:"thresholds"`
	Persistence PersistenceConfig     `yaml:"persistence" json:"persistence"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// RiskDefaults seed the risk parameters of randomly generated genomes
type RiskDefaults struct {
	MaxPositionSizePct float64 `yaml:"max_position_size_pct" json:"max_position_size_pct"`
	MaxDrawdownPct     float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
}

// PerformanceThresholds decide whether a fitness result is good enough
type PerformanceThresholds struct {
	MinSharpeRatio  float64 `yaml:"min_sharpe_ratio" json:"min_sharpe_ratio"`
	MinProfitFactor float64 `yaml:"min_profit_factor" json:"min_profit_factor"`
	MaxMDDThreshold float64 `yaml:"max_mdd_threshold" json:"max_mdd_threshold"`
}

// PersistenceConfig selects the document store and its retry policy
type PersistenceConfig struct {
	Backend        string        `yaml:"backend" json:"backend"`
	Path           string        `yaml:"path" json:"path"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// DefaultEvolutionConfig returns the production defaults
func DefaultEvolutionConfig() EvolutionConfig {
	return EvolutionConfig{
		PopulationSize:         50,
		MaxGenerations:         1000,
		MutationRate:           0.15,
		CrossoverRate:          0.65,
		EliteSize:              5,
		ConvergenceGenerations: 3,
		MaxWorkers:             4,
		MaxIndicators:          4,
		DedupRetries:           10,
		IndicatorTypes:         []string{"sma", "ema", "rsi", "macd", "bbands", "atr", "stoch"},
		Seed:                   0,

		Timeframe:        "1h",
		DataLookbackDays: 90,
		MinDataPoints:    500,

		RLTuningEnabled:  false,
		RLLearningRate:   0.001,
		RLDiscountFactor: 0.95,
		RLEpisodes:       1000,

		Risk: RiskDefaults{
			MaxPositionSizePct: 0.1,
			MaxDrawdownPct:     0.25,
			StopLossPct:        0.02,
		},
		Thresholds: PerformanceThresholds{
			MinSharpeRatio:  1.0,
			MinProfitFactor: 1.5,
			MaxMDDThreshold: 0.15,
		},
		Persistence: PersistenceConfig{
			Backend:        BackendMemory,
			Path:           "",
			MaxRetries:     5,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},

		LogLevel: "INFO",
		LogFile:  "aaee_evolution.log",
	}
}

// Clone returns a copy that shares no slices with c
func (c EvolutionConfig) Clone() EvolutionConfig {
	out := c
	out.IndicatorTypes = append([]string(nil), c.IndicatorTypes...)
	return out
}
