package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/logger"
	"github.com/ducminhle1904/strategy-evolver/pkg/config"
	"github.com/ducminhle1904/strategy-evolver/pkg/data"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "evolution.yaml")
	content := fmt.Sprintf(`initial_population_size: 6
max_generations: 2
elite_size: 2
convergence_generations: 5
max_workers: 2
max_indicators: 2
indicator_types: [sma, ema, rsi]
min_data_points: 100
data_lookback_days: 2
log_level: ERROR
log_file: %s
`, filepath.Join(dir, "evolution.log"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeCandles(t *testing.T, path string, bars int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bars; i++ {
		price := 100 + float64(i%10)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,10\n",
			start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"),
			price, price+1, price-1, price+0.5)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

// TestApplyOptions_Overrides tests that command line values win over the loaded configuration
func TestApplyOptions_Overrides(t *testing.T) {
	cfg, err := applyOptions(config.DefaultEvolutionConfig(), options{
		LogLevel:       "DEBUG",
		StoreBackend:   config.BackendSQLite,
		StorePath:      "runs.sqlite",
		Seed:           42,
		SeedSet:        true,
		MaxGenerations: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, config.BackendSQLite, cfg.Persistence.Backend)
	assert.Equal(t, "runs.sqlite", cfg.Persistence.Path)
	assert.EqualValues(t, 42, cfg.Seed)
	assert.Equal(t, 7, cfg.MaxGenerations)
}

// TestApplyOptions_KeepsUnsetValues tests that empty options leave the configuration alone
func TestApplyOptions_KeepsUnsetValues(t *testing.T) {
	base := config.DefaultEvolutionConfig()
	base.Seed = 9

	cfg, err := applyOptions(base, options{})
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

// TestApplyOptions_InvalidBackend tests that overrides are validated
func TestApplyOptions_InvalidBackend(t *testing.T) {
	_, err := applyOptions(config.DefaultEvolutionConfig(), options{StoreBackend: "redis"})
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, err = applyOptions(config.DefaultEvolutionConfig(), options{StoreBackend: config.BackendBuntDB})
	assert.ErrorIs(t, err, everrors.ErrConfiguration)
}

// TestLoadEnvFile_Missing tests that a missing env file is skipped
func TestLoadEnvFile_Missing(t *testing.T) {
	loaded, err := loadEnvFile(filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
	assert.False(t, loaded)

	loaded, err = loadEnvFile("")
	assert.NoError(t, err)
	assert.False(t, loaded)
}

// TestLoadEnvFile_Loads tests that variables from the file reach the environment
func TestLoadEnvFile_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EVOLVE_TEST_MARKER=present\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("EVOLVE_TEST_MARKER") })

	loaded, err := loadEnvFile(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "present", os.Getenv("EVOLVE_TEST_MARKER"))
}

// TestLoadCandles_DataRoot tests locating a CSV file by exchange, symbol and timeframe
func TestLoadCandles_DataRoot(t *testing.T) {
	root := t.TempDir()
	writeCandles(t, filepath.Join(root, "bybit", "spot", "BTCUSDT", "60", "candles.csv"), 48)

	cfg := config.DefaultEvolutionConfig()
	candles, source, err := loadCandles(options{DataRoot: root, Exchange: "bybit", Symbol: "btcusdt"}, cfg, logger.Discard())
	require.NoError(t, err)

	assert.Len(t, candles, 48)
	assert.True(t, strings.HasSuffix(source, filepath.Join("60", "candles.csv")))
}

// TestLoadCandles_LookbackFilter tests that only the trailing lookback days are kept
func TestLoadCandles_LookbackFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	writeCandles(t, path, 72)

	cfg := config.DefaultEvolutionConfig()
	cfg.DataLookbackDays = 1
	candles, _, err := loadCandles(options{DataFile: path}, cfg, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, candles, 25)
}

// TestLoadCandles_NoSource tests the error when no data source is selected
func TestLoadCandles_NoSource(t *testing.T) {
	_, _, err := loadCandles(options{}, config.DefaultEvolutionConfig(), logger.Discard())
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, _, err = loadCandles(options{DataRoot: t.TempDir(), Exchange: "bybit", Symbol: "ETHUSDT"}, config.DefaultEvolutionConfig(), logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candles.csv")
}

// TestLoadCandles_Synthetic tests that synthetic data is reproducible for a seed
func TestLoadCandles_Synthetic(t *testing.T) {
	cfg := config.DefaultEvolutionConfig()
	cfg.Seed = 11

	first, _, err := loadCandles(options{Synthetic: 50}, cfg, logger.Discard())
	require.NoError(t, err)
	second, _, err := loadCandles(options{Synthetic: 50}, cfg, logger.Discard())
	require.NoError(t, err)

	assert.Len(t, first, 50)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Hour, first[1].Timestamp.Sub(first[0].Timestamp))
}

// TestBuildWindow tests the static and rolling window selection
func TestBuildWindow(t *testing.T) {
	candles := data.Synthetic(1, 100, syntheticStart, time.Hour)
	day := 24 * time.Hour

	static, err := buildWindow(candles, options{}, day)
	require.NoError(t, err)
	assert.IsType(t, &data.StaticWindow{}, static)

	rolling, err := buildWindow(candles, options{RollingWindow: 40, Step: 10}, day)
	require.NoError(t, err)
	assert.IsType(t, &data.RollingWindow{}, rolling)

	_, err = buildWindow(candles, options{RollingWindow: 200, Step: 10}, day)
	assert.Error(t, err)
}

// TestBuildWindow_ShorterThanLookback tests that windows not covering the lookback are rejected up front
func TestBuildWindow_ShorterThanLookback(t *testing.T) {
	candles := data.Synthetic(1, 100, syntheticStart, time.Hour)

	_, err := buildWindow(candles, options{RollingWindow: 20, Step: 5}, 24*time.Hour)
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, err = buildWindow(candles, options{}, 5*24*time.Hour)
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, err = buildWindow(nil, options{}, time.Hour)
	assert.ErrorIs(t, err, everrors.ErrInsufficientData)
}

// TestApp_RunAndList tests a complete run on synthetic data followed by the runs listing
func TestApp_RunAndList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	dbPath := filepath.Join(dir, "evolver.db")
	outDir := filepath.Join(dir, "report")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{
		"evolve", "run",
		"--config", cfgPath,
		"--env", "",
		"--synthetic", "400",
		"--store", config.BackendBuntDB,
		"--store-path", dbPath,
		"--output", outDir,
		"--seed", "3",
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "EVOLUTION RUN")
	assert.Contains(t, out.String(), "MAX_GENERATIONS_REACHED")
	for _, name := range []string{"evolution.xlsx", "generations.csv", "run.json"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	out.Reset()
	app = newApp()
	app.Writer = &out
	err = app.Run([]string{
		"evolve", "runs",
		"--config", cfgPath,
		"--env", "",
		"--store", config.BackendBuntDB,
		"--store-path", dbPath,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "EVOLUTION RUNS")
	assert.Contains(t, out.String(), "max_generations_reached")
}

// TestApp_RunWithHoldout tests that the top genomes are validated on the held out bars
func TestApp_RunWithHoldout(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{
		"evolve", "run",
		"--config", cfgPath,
		"--env", "",
		"--synthetic", "1200",
		"--holdout", "0.75",
		"--validate-top", "2",
		"--no-files",
		"--seed", "5",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "HOLDOUT VALIDATION")
}

// TestSplitHoldout tests the evolution/holdout split and its rejected ratios
func TestSplitHoldout(t *testing.T) {
	candles := data.Synthetic(1, 100, syntheticStart, time.Hour)

	evolved, holdout, err := splitHoldout(candles, 0)
	require.NoError(t, err)
	assert.Len(t, evolved, 100)
	assert.Nil(t, holdout)

	evolved, holdout, err = splitHoldout(candles, 0.8)
	require.NoError(t, err)
	assert.Len(t, evolved, 80)
	assert.Len(t, holdout, 20)

	_, _, err = splitHoldout(candles, 1.5)
	assert.ErrorIs(t, err, everrors.ErrConfiguration)
}

// TestApp_ResumeUnknownRun tests that resuming a run that was never stored fails
func TestApp_ResumeUnknownRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{
		"evolve", "resume",
		"--config", cfgPath,
		"--env", "",
		"--synthetic", "400",
		"--store", config.BackendBuntDB,
		"--store-path", filepath.Join(dir, "evolver.db"),
		"--run-id", "does-not-exist",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestApp_Version tests the version command
func TestApp_Version(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"evolve", "version"}))
	assert.Contains(t, out.String(), ProjectVersion)
}
