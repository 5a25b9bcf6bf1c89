package config

import (
	"math"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
)

const hoursPerYear = 365 * 24

func configError(format string, args ...interface{}) error {
	return everrors.NewConfigurationError("config", "Validate", format, args...)
}

// Validate checks every field and returns a ConfigurationError for the first invalid one
func (c EvolutionConfig) Validate() error {
	if c.PopulationSize < 1 {
		return configError("initial_population_size must be at least 1, got %d", c.PopulationSize)
	}
	if c.MaxGenerations < 1 {
		return configError("max_generations must be at least 1, got %d", c.MaxGenerations)
	}
	if !isRate(c.MutationRate) {
		return configError("mutation rate %v must be between 0 and 1", c.MutationRate)
	}
	if !isRate(c.CrossoverRate) {
		return configError("crossover rate %v must be between 0 and 1", c.CrossoverRate)
	}
	if c.EliteSize < 0 || c.EliteSize > c.PopulationSize {
		return configError("elite_size %d must be within [0, %d]", c.EliteSize, c.PopulationSize)
	}
	if c.ConvergenceGenerations < 1 {
		return configError("convergence_generations must be at least 1, got %d", c.ConvergenceGenerations)
	}
	if c.MaxWorkers < 1 {
		return configError("max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MaxIndicators < 1 {
		return configError("max_indicators must be at least 1, got %d", c.MaxIndicators)
	}
	if c.DedupRetries < 0 {
		return configError("dedup_retries must be non-negative, got %d", c.DedupRetries)
	}
	if len(c.IndicatorTypes) == 0 {
		return configError("indicator_types must not be empty")
	}
	for _, name := range c.IndicatorTypes {
		if _, err := genome.IndicatorTypeFromString(name); err != nil {
			return configError("unknown indicator type %q", name)
		}
	}

	if _, err := c.TimeframeDuration(); err != nil {
		return err
	}
	if c.DataLookbackDays < 1 {
		return configError("data_lookback_days must be at least 1, got %d", c.DataLookbackDays)
	}
	if c.MinDataPoints < 1 {
		return configError("min_data_points must be at least 1, got %d", c.MinDataPoints)
	}

	if c.RLLearningRate <= 0 || c.RLLearningRate > 1 {
		return configError("rl_learning_rate %v must be within (0, 1]", c.RLLearningRate)
	}
	if !isRate(c.RLDiscountFactor) {
		return configError("rl_discount_factor %v must be between 0 and 1", c.RLDiscountFactor)
	}
	if c.RLEpisodes < 0 {
		return configError("rl_episodes must be non-negative, got %d", c.RLEpisodes)
	}

	if !isFraction(c.Risk.MaxPositionSizePct) {
		return configError("max position size %v must be between 0 and 1", c.Risk.MaxPositionSizePct)
	}
	if !isFraction(c.Risk.MaxDrawdownPct) {
		return configError("max drawdown %v must be between 0 and 1", c.Risk.MaxDrawdownPct)
	}
	if !isFraction(c.Risk.StopLossPct) {
		return configError("stop loss %v must be between 0 and 1", c.Risk.StopLossPct)
	}

	if !isFinite(c.Thresholds.MinSharpeRatio) || !isFinite(c.Thresholds.MinProfitFactor) {
		return configError("performance thresholds must be finite")
	}
	if !isFraction(c.Thresholds.MaxMDDThreshold) {
		return configError("max_mdd_threshold %v must be between 0 and 1", c.Thresholds.MaxMDDThreshold)
	}

	switch c.Persistence.Backend {
	case BackendMemory:
	case BackendBuntDB, BackendSQLite:
		if c.Persistence.Path == "" {
			return configError("persistence path is required for backend %q", c.Persistence.Backend)
		}
	default:
		return configError("unknown persistence backend %q", c.Persistence.Backend)
	}
	if c.Persistence.MaxRetries < 0 {
		return configError("persistence max_retries must be non-negative, got %d", c.Persistence.MaxRetries)
	}
	if c.Persistence.InitialBackoff <= 0 || c.Persistence.MaxBackoff < c.Persistence.InitialBackoff {
		return configError("persistence backoff must satisfy 0 < initial (%v) <= max (%v)",
			c.Persistence.InitialBackoff, c.Persistence.MaxBackoff)
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return configError("unknown log level %q", c.LogLevel)
	}
	return nil
}

// TimeframeDuration parses the bar timeframe ("15m", "1h", "1d", "1w")
func (c EvolutionConfig) TimeframeDuration() (time.Duration, error) {
	d, err := str2duration.ParseDuration(c.Timeframe)
	if err != nil {
		return 0, configError("invalid timeframe %q: %v", c.Timeframe, err)
	}
	if d <= 0 {
		return 0, configError("timeframe %q must be positive", c.Timeframe)
	}
	return d, nil
}

// PeriodsPerYear is the Sharpe annualization factor for the configured timeframe
func (c EvolutionConfig) PeriodsPerYear() float64 {
	d, err := c.TimeframeDuration()
	if err != nil {
		return 1
	}
	return float64(hoursPerYear*time.Hour) / float64(d)
}

// LookbackDuration is the history span each evaluation window should cover
func (c EvolutionConfig) LookbackDuration() time.Duration {
	return time.Duration(c.DataLookbackDays) * 24 * time.Hour
}

func isRate(v float64) bool {
	return v >= 0 && v <= 1
}

func isFraction(v float64) bool {
	return v > 0 && v <= 1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
