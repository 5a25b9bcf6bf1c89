package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ducminhle1904/strategy-evolver/internal/storage"
)

func runAction(c *cli.Context) error {
	opts := optionsFrom(c)
	s, err := openSession(opts, c.App.Writer)
	if err != nil {
		return err
	}
	defer s.Close()

	candles, source, err := loadCandles(opts, s.cfg, s.log)
	if err != nil {
		return err
	}
	evolved, holdout, err := splitHoldout(candles, opts.Holdout)
	if err != nil {
		return err
	}
	window, err := buildWindow(evolved, opts, s.cfg.LookbackDuration())
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	s.log.WithFields(logrus.Fields{
		"data":           source,
		"evolve_bars":    len(evolved),
		"holdout_bars":   len(holdout),
		"rolling_window": opts.RollingWindow,
	}).Info("Starting evolution")

	ctrl := s.controller(s.cfg, window)
	final, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}
	ranked := ctrl.Ranked()
	return s.report(final, ranked, s.validate(final.ConfigSnapshot, ranked, evolved, holdout))
}

func resumeAction(c *cli.Context) error {
	opts := optionsFrom(c)
	s, err := openSession(opts, c.App.Writer)
	if err != nil {
		return err
	}
	defer s.Close()

	// the stored snapshot decides timeframe and lookback of the data, not the current config
	run, err := s.repo.LoadRun(c.Context, opts.RunID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("run %s not found in %s store", opts.RunID, s.cfg.Persistence.Backend)
		}
		return err
	}

	candles, source, err := loadCandles(opts, run.ConfigSnapshot, s.log)
	if err != nil {
		return err
	}
	evolved, holdout, err := splitHoldout(candles, opts.Holdout)
	if err != nil {
		return err
	}
	window, err := buildWindow(evolved, opts, run.ConfigSnapshot.LookbackDuration())
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(c.Context)
	defer stop()

	s.log.WithFields(logrus.Fields{
		"run_id":     run.RunID,
		"generation": run.Generation,
		"data":       source,
	}).Info("Resuming evolution")

	ctrl := s.controller(run.ConfigSnapshot, window)
	final, err := ctrl.Resume(ctx, opts.RunID)
	if err != nil {
		return err
	}
	ranked := ctrl.Ranked()
	return s.report(final, ranked, s.validate(final.ConfigSnapshot, ranked, evolved, holdout))
}

func runsAction(c *cli.Context) error {
	s, err := openSession(optionsFrom(c), c.App.Writer)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.repo.ListRuns(c.Context)
	if err != nil {
		return err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetTitle("EVOLUTION RUNS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run ID", "Started", "State", "Outcome", "Reason", "Generations", "Best Fitness", "Resumable"})
	for _, run := range runs {
		resumable := "no"
		if !run.Finished() {
			resumable = "yes"
		}
		t.AppendRow(table.Row{
			run.RunID,
			run.StartTime.Format(time.RFC3339),
			run.State,
			run.Outcome,
			run.TerminationReason,
			run.GenerationsCompleted,
			fmt.Sprintf("%.4f", run.BestFitness),
			resumable,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(runs)})
	t.Render()
	return nil
}

// interruptContext is cancelled on SIGINT or SIGTERM; the controller stops at the next generation boundary
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
