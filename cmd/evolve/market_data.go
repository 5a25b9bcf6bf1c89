package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/pkg/config"
	"github.com/ducminhle1904/strategy-evolver/pkg/data"
	"github.com/ducminhle1904/strategy-evolver/pkg/orchestrator"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
	"github.com/ducminhle1904/strategy-evolver/pkg/validation"
)

// syntheticStart anchors generated series so reruns with the same seed see the same candles
var syntheticStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// loadCandles returns the market data selected by the options: synthetic bars, an explicit CSV file,
// or a file located under the data root by exchange, symbol and timeframe
func loadCandles(opts options, cfg config.EvolutionConfig, log logrus.FieldLogger) ([]types.OHLCV, string, error) {
	interval, err := cfg.TimeframeDuration()
	if err != nil {
		return nil, "", err
	}

	if opts.Synthetic > 0 {
		seed := cfg.Seed
		if seed == 0 {
			seed = 1
		}
		candles := data.Synthetic(seed, opts.Synthetic, syntheticStart, interval)
		return candles, fmt.Sprintf("synthetic(%d bars, seed %d)", opts.Synthetic, seed), nil
	}

	path := opts.DataFile
	if path == "" {
		if opts.Symbol == "" {
			return nil, "", everrors.NewConfigurationError("cli", "loadCandles", "one of --data, --symbol or --synthetic is required")
		}
		found, attempted := data.FindDataFile(opts.DataRoot, opts.Exchange, opts.Symbol, cfg.Timeframe)
		if found == "" {
			return nil, "", everrors.NewConfigurationError("cli", "loadCandles",
				"no data file for %s %s on %s, tried: %s", opts.Symbol, cfg.Timeframe, opts.Exchange, strings.Join(attempted, ", "))
		}
		path = found
	}

	candles, err := data.NewCSVProvider(log).LoadData(path)
	if err != nil {
		return nil, "", err
	}
	candles = data.FilterByLookbackDays(data.Normalize(candles), cfg.DataLookbackDays)
	if len(candles) == 0 {
		return nil, "", everrors.NewInsufficientDataError("cli", "loadCandles", 0, cfg.MinDataPoints)
	}

	log.WithFields(logrus.Fields{
		"source":        path,
		"bars":          len(candles),
		"lookback_days": cfg.DataLookbackDays,
		"first":         candles[0].Timestamp.Format(time.RFC3339),
		"last":          candles[len(candles)-1].Timestamp.Format(time.RFC3339),
	}).Info("Market data loaded")
	return candles, path, nil
}

// splitHoldout keeps the trailing bars out of evolution when a holdout ratio is set
func splitHoldout(candles []types.OHLCV, ratio float64) ([]types.OHLCV, []types.OHLCV, error) {
	if ratio == 0 {
		return candles, nil, nil
	}
	evolve, holdout := validation.SplitByRatio(candles, ratio)
	if len(holdout) == 0 {
		return nil, nil, everrors.NewConfigurationError("cli", "splitHoldout",
			"holdout ratio %v must be within (0, 1) and leave bars on both sides of %d", ratio, len(candles))
	}
	return evolve, holdout, nil
}

// buildWindow picks a static window over all bars or a rolling one when --rolling-window is set.
// Every window has to cover the lookback, otherwise each genome would fail on it.
func buildWindow(candles []types.OHLCV, opts options, lookback time.Duration) (orchestrator.WindowSource, error) {
	if len(candles) == 0 {
		return nil, everrors.NewInsufficientDataError("cli", "buildWindow", 0, 1)
	}
	size := len(candles)
	if opts.RollingWindow > 0 && opts.RollingWindow < size {
		size = opts.RollingWindow
	}
	if span := candles[size-1].Timestamp.Sub(candles[0].Timestamp); span < lookback {
		return nil, everrors.NewConfigurationError("cli", "buildWindow",
			"windows of %d bars span %s, less than the %s lookback", size, span, lookback)
	}

	if opts.RollingWindow > 0 {
		return data.NewRollingWindow(candles, opts.RollingWindow, opts.Step)
	}
	return data.NewStaticWindow(candles), nil
}
