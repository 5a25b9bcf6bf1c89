package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/monitoring"
	"github.com/ducminhle1904/strategy-evolver/pkg/config"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/optimization"
)

// Controller drives one evolution run through
// IDLE -> RUNNING -> {CONVERGED | MAX_GENERATIONS_REACHED | ABORTED} -> TERMINATED.
// Run and Resume are single-use; the accessors are safe to call from other goroutines.
type Controller struct {
	cfg       config.EvolutionConfig
	source    WindowSource
	repo      *Repository
	logger    logrus.FieldLogger
	evaluator backtest.GenomeEvaluator
	health    *monitoring.HealthChecker
	observers []GenerationObserver

	// owned by the run goroutine
	sampler *genome.Sampler
	manager *optimization.Manager
	tuner   *optimization.RateTuner

	mu         sync.RWMutex
	state      ControllerState
	run        EvolutionRun
	population optimization.Population
	ranked     []optimization.Member
}

// NewController creates an idle controller. The configuration is copied and never changes afterwards.
func NewController(cfg config.EvolutionConfig, source WindowSource, repo *Repository, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	cfg = cfg.Clone()
	return &Controller{
		cfg:       cfg,
		source:    source,
		repo:      repo,
		logger:    logger.WithField("component", "controller"),
		evaluator: backtest.NewEvaluator(cfg.MinDataPoints, cfg.LookbackDuration(), cfg.PeriodsPerYear()),
		state:     StateIdle,
	}
}

// WithEvaluator replaces the default backtest evaluator
func (c *Controller) WithEvaluator(evaluator backtest.GenomeEvaluator) *Controller {
	c.evaluator = evaluator
	return c
}

// WithHealthChecker reports run progress to h
func (c *Controller) WithHealthChecker(h *monitoring.HealthChecker) *Controller {
	c.health = h
	return c
}

// OnGeneration registers an observer called after every persisted generation
func (c *Controller) OnGeneration(observer GenerationObserver) *Controller {
	c.observers = append(c.observers, observer)
	return c
}

// State returns the controller state
func (c *Controller) State() ControllerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Record returns a copy of the run record
func (c *Controller) Record() EvolutionRun {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run.clone()
}

// Population returns the last completed generation, ranked best first when it was evaluated
func (c *Controller) Population() optimization.Population {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pop := c.population
	pop.Members = append([]optimization.Member(nil), c.population.Members...)
	return pop
}

// Ranked returns the ranking of the last evaluated generation
func (c *Controller) Ranked() []optimization.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]optimization.Member(nil), c.ranked...)
}

// Run starts a new run and blocks until it terminates. A non-nil error means the run could not start;
// aborts after start are reported through the returned record's TerminationReason.
func (c *Controller) Run(ctx context.Context) (*EvolutionRun, error) {
	if err := c.claim("Run"); err != nil {
		return nil, err
	}
	if err := c.cfg.Validate(); err != nil {
		c.setState(StateIdle)
		return nil, err
	}

	snapshot := c.cfg.Clone()
	if snapshot.Seed == 0 {
		snapshot.Seed = time.Now().UnixNano()
	}
	if err := c.prepare(snapshot, snapshot.Seed); err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	if err := c.manager.Initialize(snapshot.PopulationSize); err != nil {
		c.setState(StateIdle)
		return nil, err
	}

	run := EvolutionRun{
		RunID:          uuid.NewString(),
		ConfigSnapshot: snapshot,
		StartTime:      time.Now().UTC(),
		State:          StateRunning,
		MutationRate:   snapshot.MutationRate,
		CrossoverRate:  snapshot.CrossoverRate,
	}
	run.PopulationIDs = memberIDs(c.manager.Snapshot().Members)
	c.publish(run, c.manager.Snapshot(), nil)

	if err := c.persistMembers(ctx, c.manager.Snapshot().Members); err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("persisting initial population: %w", err)
	}
	if err := c.repo.SaveRun(ctx, run); err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("persisting run record: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"run_id":          run.RunID,
		"population_size": snapshot.PopulationSize,
		"max_generations": snapshot.MaxGenerations,
		"seed":            snapshot.Seed,
		"rl_tuning":       snapshot.RLTuningEnabled,
	}).Info("Evolution run started")

	final := c.loop(ctx, run)
	return &final, nil
}

// Resume continues an interrupted run from its last persisted generation. The configuration
// snapshot of the stored run is used; the controller's own configuration is ignored.
func (c *Controller) Resume(ctx context.Context, runID string) (*EvolutionRun, error) {
	if err := c.claim("Resume"); err != nil {
		return nil, err
	}

	run, err := c.repo.LoadRun(ctx, runID)
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	if run.Finished() {
		c.setState(StateIdle)
		return nil, everrors.NewValidationError("controller", "Resume", "run %s already finished as %s", runID, run.Outcome)
	}

	snapshot := run.ConfigSnapshot.Clone()
	if err := snapshot.Validate(); err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	c.cfg = snapshot
	c.evaluator = backtestEvaluatorFor(c.evaluator, snapshot)

	// a fresh stream per resumed generation keeps resumes reproducible
	if err := c.prepare(snapshot, snapshot.Seed+int64(run.Generation)); err != nil {
		c.setState(StateIdle)
		return nil, err
	}

	genomes, err := c.restoreGenomes(ctx, run)
	if err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	if err := c.manager.Restore(run.Generation, genomes); err != nil {
		c.setState(StateIdle)
		return nil, err
	}
	if run.MutationRate > 0 || run.CrossoverRate > 0 {
		if err := c.manager.SetRates(run.MutationRate, run.CrossoverRate); err != nil {
			c.setState(StateIdle)
			return nil, err
		}
		if c.tuner != nil {
			c.tuner = c.newTuner(snapshot, snapshot.Seed+int64(run.Generation), run.MutationRate, run.CrossoverRate)
		}
	}

	// the restored generation is evaluated again, so its previous stats entry is rolled back
	if n := len(run.GenerationStats); n > 0 && run.GenerationStats[n-1].Generation == run.Generation {
		run.GenerationStats = run.GenerationStats[:n-1]
		run.GenerationsCompleted--
		run.Streaks = copyStreaks(run.PreviousStreaks)
		run.ConvergenceStreak, run.ConvergenceID = longestStreak(run.Streaks)
	}

	run.State = StateRunning
	run.Outcome = ""
	run.TerminationReason = ""
	run.Error = ""
	run.EndTime = nil
	run.PopulationIDs = memberIDs(c.manager.Snapshot().Members)
	c.publish(run, c.manager.Snapshot(), nil)

	if err := c.repo.SaveRun(ctx, run); err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("persisting run record: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"run_id":     run.RunID,
		"generation": run.Generation,
		"completed":  run.GenerationsCompleted,
	}).Info("Evolution run resumed")

	final := c.loop(ctx, run)
	return &final, nil
}

// claim moves IDLE -> RUNNING so a controller runs at most once at a time
func (c *Controller) claim(operation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return everrors.NewValidationError("controller", operation, "controller is %s", c.state)
	}
	if c.repo == nil || c.source == nil || c.evaluator == nil {
		return everrors.NewConfigurationError("controller", operation, "repository, window source and evaluator are required")
	}
	c.state = StateRunning
	return nil
}

func (c *Controller) setState(state ControllerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// prepare builds the sampler, population manager and optional tuner for a run
func (c *Controller) prepare(cfg config.EvolutionConfig, seed int64) error {
	indicatorTypes, err := parseIndicatorTypes(cfg.IndicatorTypes)
	if err != nil {
		return err
	}
	risk := genome.RiskParams{
		MaxPositionSizePct: cfg.Risk.MaxPositionSizePct,
		MaxDrawdownPct:     cfg.Risk.MaxDrawdownPct,
		StopLossPct:        cfg.Risk.StopLossPct,
	}
	c.sampler, err = genome.NewSampler(rand.New(rand.NewSource(seed)), indicatorTypes, cfg.MaxIndicators, risk)
	if err != nil {
		return err
	}

	c.manager, err = optimization.NewManager(optimization.ManagerConfig{
		EliteSize:     cfg.EliteSize,
		MutationRate:  cfg.MutationRate,
		CrossoverRate: cfg.CrossoverRate,
		MaxWorkers:    cfg.MaxWorkers,
		DedupRetries:  cfg.DedupRetries,
		MaxIndicators: cfg.MaxIndicators,
	}, c.sampler, c.evaluator, c.logger)
	if err != nil {
		return err
	}

	c.tuner = nil
	if cfg.RLTuningEnabled {
		c.tuner = c.newTuner(cfg, seed, cfg.MutationRate, cfg.CrossoverRate)
	}
	return nil
}

// newTuner gets its own random stream so exploration does not shift genome sampling
func (c *Controller) newTuner(cfg config.EvolutionConfig, seed int64, mutation, crossover float64) *optimization.RateTuner {
	return optimization.NewRateTuner(rand.New(rand.NewSource(seed+1)), optimization.TunerConfig{
		LearningRate:   cfg.RLLearningRate,
		DiscountFactor: cfg.RLDiscountFactor,
		Episodes:       cfg.RLEpisodes,
	}, mutation, crossover)
}

// restoreGenomes loads the population of a run record. Genomes that ended terminal in an interrupted
// generation are replaced by fresh random genomes so the population keeps its size.
func (c *Controller) restoreGenomes(ctx context.Context, run EvolutionRun) ([]*genome.StrategyGenome, error) {
	if len(run.PopulationIDs) == 0 {
		return nil, everrors.NewValidationError("controller", "Resume", "run %s has no population", run.RunID)
	}

	genomes := make([]*genome.StrategyGenome, 0, len(run.PopulationIDs))
	seen := make(map[string]bool, len(run.PopulationIDs))
	dropped := 0
	for _, id := range run.PopulationIDs {
		g, err := c.repo.LoadGenome(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading genome %s: %w", id, err)
		}
		if g.Status().IsTerminal() || seen[g.Fingerprint()] {
			dropped++
			continue
		}
		seen[g.Fingerprint()] = true
		genomes = append(genomes, g)
	}

	for len(genomes) < len(run.PopulationIDs) {
		g, err := c.sampler.Genome(run.Generation)
		if err != nil {
			return nil, err
		}
		if seen[g.Fingerprint()] {
			continue
		}
		seen[g.Fingerprint()] = true
		genomes = append(genomes, g)
	}

	if dropped > 0 {
		c.logger.WithFields(logrus.Fields{
			"run_id":   run.RunID,
			"replaced": dropped,
		}).Warn("Replaced terminal genomes of the interrupted generation")
	}
	return genomes, nil
}

// publish stores the latest run record and population for concurrent readers
func (c *Controller) publish(run EvolutionRun, pop optimization.Population, ranked []optimization.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run.clone()
	c.population = pop
	if ranked != nil {
		c.ranked = ranked
	}
	if c.health != nil {
		c.health.SetState(run.RunID, string(c.state))
	}
}

func parseIndicatorTypes(names []string) ([]genome.IndicatorType, error) {
	out := make([]genome.IndicatorType, 0, len(names))
	for _, name := range names {
		t, err := genome.IndicatorTypeFromString(name)
		if err != nil {
			return nil, everrors.NewConfigurationError("controller", "prepare", "invalid indicator type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// backtestEvaluatorFor rebuilds the default evaluator for a restored snapshot and keeps a custom one
func backtestEvaluatorFor(current backtest.GenomeEvaluator, cfg config.EvolutionConfig) backtest.GenomeEvaluator {
	if _, ok := current.(*backtest.Evaluator); ok {
		return backtest.NewEvaluator(cfg.MinDataPoints, cfg.LookbackDuration(), cfg.PeriodsPerYear())
	}
	return current
}

func memberIDs(members []optimization.Member) []string {
	ids := make([]string, len(members))
	for i, member := range members {
		ids[i] = member.ID()
	}
	return ids
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
