package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	"github.com/ducminhle1904/strategy-evolver/internal/logger"
	"github.com/ducminhle1904/strategy-evolver/internal/monitoring"
	"github.com/ducminhle1904/strategy-evolver/internal/storage"
	"github.com/ducminhle1904/strategy-evolver/pkg/config"
	"github.com/ducminhle1904/strategy-evolver/pkg/optimization"
	"github.com/ducminhle1904/strategy-evolver/pkg/orchestrator"
	"github.com/ducminhle1904/strategy-evolver/pkg/reporting"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
	"github.com/ducminhle1904/strategy-evolver/pkg/validation"
)

// session holds what every command needs: configuration, logging, the store and the metrics endpoint
type session struct {
	opts   options
	cfg    config.EvolutionConfig
	log    *logger.Logger
	store  storage.DocumentStore
	repo   *orchestrator.Repository
	health *monitoring.HealthChecker
	server *http.Server
	out    io.Writer
}

func openSession(opts options, out io.Writer) (*session, error) {
	if out == nil {
		out = os.Stdout
	}

	envLoaded, envErr := loadEnvFile(opts.EnvFile)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg, err = applyOptions(cfg, opts)
	if err != nil {
		return nil, err
	}

	log, err := logger.Setup(cfg.LogLevel, cfg.LogFile, out)
	if err != nil {
		return nil, err
	}
	switch {
	case envErr != nil:
		log.WithError(envErr).Warn("Could not load environment file, using system environment")
	case envLoaded:
		log.WithField("file", opts.EnvFile).Debug("Environment loaded")
	}

	inner, err := storage.Open(cfg.Persistence)
	if err != nil {
		log.Close()
		return nil, err
	}
	store := storage.NewRetryingStore(inner, storage.RetryConfigFrom(cfg.Persistence), log)

	s := &session{
		opts:   opts,
		cfg:    cfg,
		log:    log,
		store:  store,
		repo:   orchestrator.NewRepository(store),
		health: monitoring.NewHealthChecker(),
		out:    out,
	}

	if opts.MetricsAddr != "" {
		if err := s.serveMetrics(opts.MetricsAddr); err != nil {
			s.Close()
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"config":  opts.ConfigFile,
		"store":   cfg.Persistence.Backend,
		"version": GetFullVersion(),
	}).Info("Session ready")
	return s, nil
}

// loadEnvFile loads a .env file; a missing file is not an error
func loadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

func (s *session) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", s.health)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Metrics server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("Serving /metrics and /health")
	return nil
}

func (s *session) controller(cfg config.EvolutionConfig, source orchestrator.WindowSource) *orchestrator.Controller {
	return orchestrator.NewController(cfg, source, s.repo, s.log).WithHealthChecker(s.health)
}

// validate compares the top evaluated genomes on the evolution bars and the held out bars
func (s *session) validate(cfg config.EvolutionConfig, ranked []optimization.Member, evolved, holdout []types.OHLCV) []validation.Summary {
	if len(holdout) == 0 || s.opts.ValidateTop <= 0 {
		return nil
	}

	v := validation.NewValidator(
		backtest.NewEvaluator(cfg.MinDataPoints, cfg.LookbackDuration(), cfg.PeriodsPerYear()),
		backtest.Thresholds{
			MinSharpeRatio:  cfg.Thresholds.MinSharpeRatio,
			MinProfitFactor: cfg.Thresholds.MinProfitFactor,
			MaxMDDThreshold: cfg.Thresholds.MaxMDDThreshold,
		},
	)

	evaluated := lo.Filter(ranked, func(m optimization.Member, _ int) bool { return m.Evaluated() })
	if len(evaluated) > s.opts.ValidateTop {
		evaluated = evaluated[:s.opts.ValidateTop]
	}

	var summaries []validation.Summary
	for _, m := range evaluated {
		summary, err := v.Compare(m.Genome, evolved, holdout)
		if err != nil {
			s.log.WithError(err).WithField("genome_id", m.ID()).Warn("Holdout validation failed")
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

// report renders the final run and turns an aborted run into a command error
func (s *session) report(final *orchestrator.EvolutionRun, ranked []optimization.Member, validated []validation.Summary) error {
	mgr := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   !s.opts.Quiet,
		OutputDirectory: s.opts.OutputDir,
		ExcelEnabled:    !s.opts.NoFiles,
		CSVEnabled:      !s.opts.NoFiles,
		JSONEnabled:     !s.opts.NoFiles,
		TopGenomes:      s.opts.Top,
	}, s.out)

	report := reporting.NewRunReport(*final, ranked, s.opts.Top)
	report.Validation = validated
	written, err := mgr.Report(report)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}
	for _, path := range written {
		s.log.WithField("path", path).Info("Report written")
	}

	if final.Outcome == orchestrator.StateAborted {
		return fmt.Errorf("run %s aborted (%s): %s", final.RunID, final.TerminationReason, final.Error)
	}
	return nil
}

// Close stops the metrics server and releases the store and log file
func (s *session) Close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("Metrics server shutdown failed")
		}
		cancel()
	}
	if err := s.store.Close(); err != nil {
		s.log.WithError(err).Warn("Closing store failed")
	}
	s.log.Close()
}
