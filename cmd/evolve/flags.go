package main

import (
	"github.com/urfave/cli/v2"

	"github.com/ducminhle1904/strategy-evolver/pkg/config"
)

// options is everything the commands read from the command line
type options struct {
	ConfigFile   string
	EnvFile      string
	LogLevel     string
	StoreBackend string
	StorePath    string

	Seed           int64
	SeedSet        bool
	MaxGenerations int

	DataFile      string
	DataRoot      string
	Exchange      string
	Symbol        string
	Synthetic     int
	RollingWindow int
	Step          int
	Holdout       float64
	ValidateTop   int

	OutputDir   string
	Top         int
	NoFiles     bool
	Quiet       bool
	MetricsAddr string

	RunID string
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file (defaults are used when omitted)",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "environment file loaded before the configuration",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "DEBUG, INFO, WARNING, ERROR or CRITICAL (overrides config)",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "store backend: memory, buntdb or sqlite (overrides config)",
		},
		&cli.StringFlag{
			Name:  "store-path",
			Usage: "database file for the buntdb and sqlite backends",
		},
	}
}

func seedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed; 0 picks a time-based seed",
		},
		&cli.IntFlag{
			Name:  "max-generations",
			Usage: "generation cap (overrides config)",
		},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "CSV file with OHLCV candles",
		},
		&cli.StringFlag{
			Name:  "data-root",
			Usage: "root of the data/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv tree",
			Value: "data",
		},
		&cli.StringFlag{
			Name:  "exchange",
			Usage: "exchange directory under data-root",
			Value: "bybit",
		},
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "eg. BTCUSDT, located under data-root when --data is omitted",
		},
		&cli.IntFlag{
			Name:  "synthetic",
			Usage: "generate this many random-walk bars instead of reading a file",
		},
		&cli.IntFlag{
			Name:  "rolling-window",
			Usage: "bars per evaluation window; 0 evaluates every generation on all bars",
		},
		&cli.IntFlag{
			Name:  "step",
			Usage: "bars the rolling window advances per generation",
			Value: 24,
		},
		&cli.Float64Flag{
			Name:  "holdout",
			Usage: "fraction of bars to evolve on, eg. 0.8; the remaining bars validate the top genomes",
		},
		&cli.IntFlag{
			Name:  "validate-top",
			Usage: "number of top genomes checked on the holdout bars",
			Value: 3,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "report directory (default results/run_<id>)",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "genomes listed in the reports; 0 lists all",
			Value: 10,
		},
		&cli.BoolFlag{
			Name:  "no-files",
			Usage: "skip the xlsx, csv and json reports",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "skip the console report",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve /metrics and /health on this address, eg. :9090",
		},
	}
}

func optionsFrom(c *cli.Context) options {
	return options{
		ConfigFile:     c.String("config"),
		EnvFile:        c.String("env"),
		LogLevel:       c.String("log-level"),
		StoreBackend:   c.String("store"),
		StorePath:      c.String("store-path"),
		Seed:           c.Int64("seed"),
		SeedSet:        c.IsSet("seed"),
		MaxGenerations: c.Int("max-generations"),
		DataFile:       c.String("data"),
		DataRoot:       c.String("data-root"),
		Exchange:       c.String("exchange"),
		Symbol:         c.String("symbol"),
		Synthetic:      c.Int("synthetic"),
		RollingWindow:  c.Int("rolling-window"),
		Step:           c.Int("step"),
		Holdout:        c.Float64("holdout"),
		ValidateTop:    c.Int("validate-top"),
		OutputDir:      c.String("output"),
		Top:            c.Int("top"),
		NoFiles:        c.Bool("no-files"),
		Quiet:          c.Bool("quiet"),
		MetricsAddr:    c.String("metrics-addr"),
		RunID:          c.String("run-id"),
	}
}

// applyOptions layers command line overrides on top of a loaded configuration and revalidates it
func applyOptions(cfg config.EvolutionConfig, opts options) (config.EvolutionConfig, error) {
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.StoreBackend != "" {
		cfg.Persistence.Backend = opts.StoreBackend
	}
	if opts.StorePath != "" {
		cfg.Persistence.Path = opts.StorePath
	}
	if opts.SeedSet {
		cfg.Seed = opts.Seed
	}
	if opts.MaxGenerations > 0 {
		cfg.MaxGenerations = opts.MaxGenerations
	}
	if err := cfg.Validate(); err != nil {
		return config.EvolutionConfig{}, err
	}
	return cfg, nil
}
