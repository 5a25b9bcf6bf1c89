package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// Load builds a configuration from defaults, an optional YAML file and environment overrides, then validates it
func Load(configFile string) (EvolutionConfig, error) {
	cfg := DefaultEvolutionConfig()

	if configFile != "" {
		loaded, err := LoadFile(configFile)
		if err != nil {
			return EvolutionConfig{}, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return EvolutionConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return EvolutionConfig{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML file on top of the defaults. Keys absent from the file keep their default.
func LoadFile(path string) (EvolutionConfig, error) {
	cfg := DefaultEvolutionConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, everrors.NewConfigurationError("config", "LoadFile", "could not read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, everrors.NewConfigurationError("config", "LoadFile", "could not parse config file %s: %v", path, err)
	}
	return cfg, nil
}

// SaveFile writes the configuration as YAML, creating parent directories
func SaveFile(cfg EvolutionConfig, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from AAEE_* variables and LOG_LEVEL. Unset variables leave the field untouched.
func (c *EvolutionConfig) ApplyEnv() error {
	var err error
	set := func(apply func() error) {
		if err == nil {
			err = apply()
		}
	}

	set(func() error { return envInt("AAEE_POPULATION_SIZE", &c.PopulationSize) })
	set(func() error { return envInt("AAEE_MAX_GENERATIONS", &c.MaxGenerations) })
	set(func() error { return envFloat("AAEE_MUTATION_RATE", &c.MutationRate) })
	set(func() error { return envFloat("AAEE_CROSSOVER_RATE", &c.CrossoverRate) })
	set(func() error { return envInt("AAEE_ELITE_SIZE", &c.EliteSize) })
	set(func() error { return envInt("AAEE_CONVERGENCE_GENERATIONS", &c.ConvergenceGenerations) })
	set(func() error { return envInt("AAEE_MAX_WORKERS", &c.MaxWorkers) })
	set(func() error { return envInt64("AAEE_SEED", &c.Seed) })
	set(func() error { return envString("AAEE_TIMEFRAME", &c.Timeframe) })
	set(func() error { return envInt("AAEE_DATA_LOOKBACK_DAYS", &c.DataLookbackDays) })
	set(func() error { return envInt("AAEE_MIN_DATA_POINTS", &c.MinDataPoints) })
	set(func() error { return envBool("AAEE_RL_TUNING_ENABLED", &c.RLTuningEnabled) })
	set(func() error { return envString("AAEE_STORE_BACKEND", &c.Persistence.Backend) })
	set(func() error { return envString("AAEE_STORE_PATH", &c.Persistence.Path) })
	set(func() error { return envString("LOG_LEVEL", &c.LogLevel) })
	set(func() error { return envString("AAEE_LOG_FILE", &c.LogFile) })

	if v := getEnv("AAEE_INDICATOR_TYPES", ""); v != "" && err == nil {
		var types []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				types = append(types, p)
			}
		}
		c.IndicatorTypes = types
	}
	return err
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envString(key string, dst *string) error {
	if val := getEnv(key, ""); val != "" {
		*dst = val
	}
	return nil
}

func envInt(key string, dst *int) error {
	val := getEnv(key, "")
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return everrors.NewConfigurationError("config", "ApplyEnv", "%s=%q is not an integer", key, val)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	val := getEnv(key, "")
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return everrors.NewConfigurationError("config", "ApplyEnv", "%s=%q is not an integer", key, val)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := getEnv(key, "")
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return everrors.NewConfigurationError("config", "ApplyEnv", "%s=%q is not a number", key, val)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	val := getEnv(key, "")
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return everrors.NewConfigurationError("config", "ApplyEnv", "%s=%q is not a boolean", key, val)
	}
	*dst = b
	return nil
}
