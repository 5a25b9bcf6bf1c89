package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/monitoring"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/optimization"
)

// abortSaveTimeout bounds the best-effort write of an aborted run record
const abortSaveTimeout = 30 * time.Second

// loop runs generations until the run converges, hits the generation cap or aborts
func (c *Controller) loop(ctx context.Context, run EvolutionRun) EvolutionRun {
	monitoring.UpdateRates(c.manager.Rates())

	for {
		if err := ctx.Err(); err != nil {
			return c.abort(ctx, run, ReasonCancelled, err)
		}

		if reason, err := c.evaluateGeneration(ctx, &run); err != nil {
			return c.abort(ctx, run, reason, err)
		}

		if run.ConvergenceStreak >= c.cfg.ConvergenceGenerations {
			return c.finish(ctx, run, StateConverged, ReasonConverged)
		}
		if run.GenerationsCompleted >= c.cfg.MaxGenerations {
			return c.finish(ctx, run, StateMaxGenerationsReached, ReasonMaxGenerations)
		}

		if err := ctx.Err(); err != nil {
			return c.abort(ctx, run, ReasonCancelled, err)
		}

		c.tuneRates(&run)

		if reason, err := c.advance(ctx, &run); err != nil {
			return c.abort(ctx, run, reason, err)
		}
	}
}

// evaluateGeneration scores the current generation, persists it and updates the run record
func (c *Controller) evaluateGeneration(ctx context.Context, run *EvolutionRun) (TerminationReason, error) {
	generation := c.manager.Generation()

	window, err := c.source.Window(ctx, generation)
	if err != nil {
		return classify(ctx, err, ReasonWindowUnavailable), fmt.Errorf("fetching window for generation %d: %w", generation, err)
	}
	// once the window is in hand the generation runs to completion, cancelled or not
	genCtx := context.WithoutCancel(ctx)
	if err := c.manager.EvaluateAll(genCtx, window); err != nil {
		return classify(genCtx, err, ReasonInternalError), err
	}

	ranked := c.manager.Ranked()
	if err := c.persistMembers(genCtx, ranked); err != nil {
		return classify(genCtx, err, ReasonPersistenceFailure), err
	}

	stats := c.manager.Stats()
	run.GenerationsCompleted++
	run.GenerationStats = append(run.GenerationStats, stats)
	run.BestGenomeID = stats.BestGenomeID
	run.BestFitness = stats.BestFitness
	c.updateConvergence(run)

	monitoring.RecordGeneration(generation, stats.BestFitness, stats.MedianFitness, stats.WorstFitness)
	if c.health != nil {
		c.health.RecordGeneration(generation, stats.BestFitness)
	}

	pop := c.manager.Snapshot()
	pop.Members = ranked
	c.publish(*run, pop, ranked)

	c.logger.WithFields(logrus.Fields{
		"run_id":      run.RunID,
		"generation":  generation,
		"best":        stats.BestFitness,
		"median":      stats.MedianFitness,
		"worst":       stats.WorstFitness,
		"failed":      stats.Failed,
		"best_genome": stats.BestGenomeID,
		"streak":      run.ConvergenceStreak,
		"duration":    stats.Duration,
	}).Info("Generation complete")

	for _, observer := range c.observers {
		observer(run.clone(), stats, ranked)
	}
	return "", nil
}

// updateConvergence keeps a streak per genome of consecutive generations meeting the thresholds.
// A genome that fails or leaves the population loses its streak.
func (c *Controller) updateConvergence(run *EvolutionRun) {
	th := c.thresholds()
	streaks := make(map[string]int)
	for _, member := range c.manager.Ranked() {
		if !member.Evaluated() || !th.Meets(*member.Result) {
			continue
		}
		streaks[member.ID()] = run.Streaks[member.ID()] + 1
	}
	run.PreviousStreaks = copyStreaks(run.Streaks)
	run.Streaks = streaks
	run.ConvergenceStreak, run.ConvergenceID = longestStreak(streaks)
}

// longestStreak picks the longest streak, ties going to the lexically smallest id
func longestStreak(streaks map[string]int) (int, string) {
	best, bestID := 0, ""
	for id, n := range streaks {
		if n > best || (n == best && id < bestID) {
			best, bestID = n, id
		}
	}
	return best, bestID
}

func (c *Controller) thresholds() backtest.Thresholds {
	return backtest.Thresholds{
		MinSharpeRatio:  c.cfg.Thresholds.MinSharpeRatio,
		MinProfitFactor: c.cfg.Thresholds.MinProfitFactor,
		MaxMDDThreshold: c.cfg.Thresholds.MaxMDDThreshold,
	}
}

// tuneRates lets the rate tuner pick the operator rates of the next generation
func (c *Controller) tuneRates(run *EvolutionRun) {
	if c.tuner == nil {
		return
	}
	mutation, crossover := c.tuner.Observe(run.BestFitness)
	if err := c.manager.SetRates(mutation, crossover); err != nil {
		c.logger.WithError(err).Warn("Rate tuner produced invalid rates, keeping previous ones")
		return
	}
	run.MutationRate, run.CrossoverRate = mutation, crossover
	monitoring.UpdateRates(mutation, crossover)
	c.logger.WithFields(logrus.Fields{
		"mutation_rate":  mutation,
		"crossover_rate": crossover,
		"updates":        c.tuner.Updates(),
	}).Debug("Operator rates tuned")
}

// advance breeds the next generation and persists it. New genomes are written before the run record
// so the record never points at a missing genome; retired genomes are archived last.
func (c *Controller) advance(ctx context.Context, run *EvolutionRun) (TerminationReason, error) {
	retired, err := c.manager.Advance()
	if err != nil {
		return classify(ctx, err, ReasonInternalError), err
	}

	next := c.manager.Snapshot()
	if err := c.persistMembers(ctx, next.Members); err != nil {
		return classify(ctx, err, ReasonPersistenceFailure), err
	}

	run.Generation = next.Generation
	run.PopulationIDs = memberIDs(next.Members)
	if err := c.repo.SaveRun(ctx, *run); err != nil {
		return classify(ctx, err, ReasonPersistenceFailure), err
	}

	for _, g := range retired {
		if err := c.repo.SaveGenome(ctx, g); err != nil {
			return classify(ctx, err, ReasonPersistenceFailure), err
		}
	}
	c.publishRun(*run)
	return "", nil
}

// finish activates the best genome, archives the rest of the final generation and closes the run record
func (c *Controller) finish(ctx context.Context, run EvolutionRun, outcome ControllerState, reason TerminationReason) EvolutionRun {
	c.setState(outcome)

	ranked := c.manager.Ranked()
	best, hasBest := c.manager.Best()
	for _, member := range ranked {
		if member.Failed() {
			continue
		}
		if hasBest && member.ID() == best.ID() {
			if err := member.Genome.Transition(genome.StatusActive); err != nil {
				c.logger.WithError(err).WithField("genome_id", member.ID()).Warn("Could not activate best genome")
			}
			continue
		}
		member.Genome.Advance(genome.StatusArchived)
	}
	if err := c.persistMembers(ctx, ranked); err != nil {
		return c.abort(ctx, run, classify(ctx, err, ReasonPersistenceFailure), err)
	}

	if hasBest {
		run.BestGenomeID = best.ID()
		run.BestFitness = best.Fitness()
	}
	end := time.Now().UTC()
	run.EndTime = &end
	run.Outcome = outcome
	run.State = StateTerminated
	run.TerminationReason = reason

	if err := c.repo.SaveRun(ctx, run); err != nil {
		run.EndTime = nil
		run.State = StateRunning
		run.Outcome = ""
		run.TerminationReason = ""
		return c.abort(ctx, run, classify(ctx, err, ReasonPersistenceFailure), err)
	}

	monitoring.RecordRun(string(outcome))
	c.terminate(run)

	c.logger.WithFields(logrus.Fields{
		"run_id":      run.RunID,
		"outcome":     outcome,
		"generations": run.GenerationsCompleted,
		"best_genome": run.BestGenomeID,
		"best":        run.BestFitness,
		"duration":    run.Duration(),
	}).Info("Evolution run finished")
	return run
}

// abort closes the run as ABORTED. Genome statuses are left untouched so the run can be resumed,
// and the run record is written on a context that survives cancellation.
func (c *Controller) abort(ctx context.Context, run EvolutionRun, reason TerminationReason, cause error) EvolutionRun {
	c.setState(StateAborted)

	end := time.Now().UTC()
	run.EndTime = &end
	run.Outcome = StateAborted
	run.State = StateTerminated
	run.TerminationReason = reason
	if cause != nil {
		run.Error = cause.Error()
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortSaveTimeout)
	defer cancel()
	if err := c.repo.SaveRun(saveCtx, run); err != nil {
		c.logger.WithError(err).WithField("run_id", run.RunID).Error("Could not persist aborted run record")
	}

	monitoring.RecordRun(string(StateAborted))
	if c.health != nil && cause != nil {
		c.health.RecordError(cause)
	}
	c.terminate(run)

	entry := c.logger.WithFields(logrus.Fields{
		"run_id":      run.RunID,
		"reason":      reason,
		"generations": run.GenerationsCompleted,
	})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	if reason == ReasonCancelled {
		entry.Warn("Evolution run cancelled")
	} else {
		entry.Error("Evolution run aborted")
	}
	return run
}

// terminate publishes the final record and moves the controller to TERMINATED
func (c *Controller) terminate(run EvolutionRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run.clone()
	c.state = StateTerminated
	if c.health != nil {
		c.health.SetState(run.RunID, string(run.Outcome))
	}
}

func (c *Controller) publishRun(run EvolutionRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run.clone()
}

func (c *Controller) persistMembers(ctx context.Context, members []optimization.Member) error {
	for _, member := range members {
		if err := c.repo.SaveGenome(ctx, member.Genome); err != nil {
			return err
		}
		if member.Result != nil {
			if err := c.repo.SaveResult(ctx, *member.Result); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify maps an error onto the termination reason of the resulting abort
func classify(ctx context.Context, err error, fallback TerminationReason) TerminationReason {
	switch {
	case isCancellation(ctx, err):
		return ReasonCancelled
	case errors.Is(err, everrors.ErrPersistence):
		return ReasonPersistenceFailure
	case errors.Is(err, everrors.ErrIncompatibleParents):
		return ReasonIncompatibleParents
	default:
		return fallback
	}
}
