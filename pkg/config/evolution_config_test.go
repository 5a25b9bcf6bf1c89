package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// TestDefaultEvolutionConfig_Valid tests that the shipped defaults pass validation
func TestDefaultEvolutionConfig_Valid(t *testing.T) {
	cfg := DefaultEvolutionConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.PopulationSize)
	assert.Equal(t, 1000, cfg.MaxGenerations)
	assert.Equal(t, 0.15, cfg.MutationRate)
	assert.Equal(t, 0.65, cfg.CrossoverRate)
	assert.Equal(t, 5, cfg.EliteSize)
	assert.Equal(t, "1h", cfg.Timeframe)
	assert.Equal(t, 500, cfg.MinDataPoints)
	assert.Equal(t, 0.15, cfg.Thresholds.MaxMDDThreshold)
	assert.Equal(t, "aaee_evolution.log", cfg.LogFile)
}

// TestValidate_RejectsInvalidValues tests that each invalid field yields a ConfigurationError
func TestValidate_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *EvolutionConfig)
	}{
		{"mutation rate above one", func(c *EvolutionConfig) { c.MutationRate = 1.5 }},
		{"negative crossover rate", func(c *EvolutionConfig) { c.CrossoverRate = -0.1 }},
		{"elite larger than population", func(c *EvolutionConfig) { c.EliteSize = c.PopulationSize + 1 }},
		{"zero population", func(c *EvolutionConfig) { c.PopulationSize = 0 }},
		{"zero position size", func(c *EvolutionConfig) { c.Risk.MaxPositionSizePct = 0 }},
		{"drawdown above one", func(c *EvolutionConfig) { c.Risk.MaxDrawdownPct = 1.2 }},
		{"bad timeframe", func(c *EvolutionConfig) { c.Timeframe = "hourly" }},
		{"unknown indicator", func(c *EvolutionConfig) { c.IndicatorTypes = []string{"sma", "ichimoku"} }},
		{"file backend without path", func(c *EvolutionConfig) { c.Persistence.Backend = BackendBuntDB }},
		{"unknown backend", func(c *EvolutionConfig) { c.Persistence.Backend = "firestore" }},
		{"unknown log level", func(c *EvolutionConfig) { c.LogLevel = "VERBOSE" }},
		{"zero workers", func(c *EvolutionConfig) { c.MaxWorkers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEvolutionConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, everrors.ErrConfiguration)
		})
	}
}

// TestPeriodsPerYear tests annualization factors for common timeframes
func TestPeriodsPerYear(t *testing.T) {
	tests := []struct {
		timeframe string
		want      float64
	}{
		{"1h", 8760},
		{"4h", 2190},
		{"1d", 365},
		{"15m", 35040},
	}
	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			cfg := DefaultEvolutionConfig()
			cfg.Timeframe = tt.timeframe
			assert.InDelta(t, tt.want, cfg.PeriodsPerYear(), 1e-9)
		})
	}
}

// TestLoadFile_OverridesDefaults tests that YAML keys override defaults and absent keys keep them
func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evolution.yaml")
	content := `
initial_population_size: 20
elite_size: 2
default_timeframe: 4h
thresholds:
  min_sharpe_ratio: 0.8
persistence:
  backend: buntdb
  path: runs.db
  initial_backoff: 50ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.PopulationSize)
	assert.Equal(t, 2, cfg.EliteSize)
	assert.Equal(t, "4h", cfg.Timeframe)
	assert.Equal(t, 0.8, cfg.Thresholds.MinSharpeRatio)
	assert.Equal(t, 1.5, cfg.Thresholds.MinProfitFactor)
	assert.Equal(t, BackendBuntDB, cfg.Persistence.Backend)
	assert.Equal(t, 50*time.Millisecond, cfg.Persistence.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.Persistence.MaxBackoff)
	assert.NoError(t, cfg.Validate())
}

// TestLoadFile_Missing tests that a missing file is a ConfigurationError
func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, everrors.ErrConfiguration)
}

// TestSaveFile_RoundTrip tests that a saved config loads back unchanged
func TestSaveFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "evolution.yaml")
	cfg := DefaultEvolutionConfig()
	cfg.Seed = 42
	cfg.IndicatorTypes = []string{"rsi", "macd"}

	require.NoError(t, SaveFile(cfg, path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// TestApplyEnv tests environment overrides
func TestApplyEnv(t *testing.T) {
	t.Setenv("AAEE_POPULATION_SIZE", "30")
	t.Setenv("AAEE_MUTATION_RATE", "0.3")
	t.Setenv("AAEE_RL_TUNING_ENABLED", "true")
	t.Setenv("AAEE_INDICATOR_TYPES", "sma, rsi")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := DefaultEvolutionConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, 30, cfg.PopulationSize)
	assert.Equal(t, 0.3, cfg.MutationRate)
	assert.True(t, cfg.RLTuningEnabled)
	assert.Equal(t, []string{"sma", "rsi"}, cfg.IndicatorTypes)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

// TestApplyEnv_InvalidNumber tests that a malformed override is rejected
func TestApplyEnv_InvalidNumber(t *testing.T) {
	t.Setenv("AAEE_ELITE_SIZE", "five")

	cfg := DefaultEvolutionConfig()
	err := cfg.ApplyEnv()
	assert.ErrorIs(t, err, everrors.ErrConfiguration)
}

// TestClone_IndependentSlices tests that a clone does not alias indicator types
func TestClone_IndependentSlices(t *testing.T) {
	cfg := DefaultEvolutionConfig()
	clone := cfg.Clone()
	clone.IndicatorTypes[0] = "ema"

	assert.Equal(t, "sma", cfg.IndicatorTypes[0])
}
