package optimization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/monitoring"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// Manager owns one generation of genomes and moves it through
// INITIALIZED -> EVALUATING -> RANKED -> ADVANCED. It is driven by a single goroutine;
// only evaluation fans out to the worker pool.
type Manager struct {
	cfg      ManagerConfig
	sampler  *genome.Sampler
	operator *GeneticOperator
	pool     *backtest.WorkerPool
	logger   logrus.FieldLogger

	size          int
	generation    int
	state         PopulationState
	windowKey     string
	members       []Member
	ranked        []Member
	mutationRate  float64
	crossoverRate float64
	evalDuration  time.Duration
}

// NewManager creates an empty population manager
func NewManager(cfg ManagerConfig, sampler *genome.Sampler, evaluator backtest.GenomeEvaluator, logger logrus.FieldLogger) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sampler == nil || evaluator == nil {
		return nil, everrors.NewConfigurationError("population", "NewManager", "sampler and evaluator are required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		cfg:           cfg,
		sampler:       sampler,
		operator:      NewGeneticOperator(sampler, cfg.MaxIndicators),
		pool:          backtest.NewWorkerPool(cfg.MaxWorkers, evaluator),
		logger:        logger.WithField("component", "population"),
		state:         StateEmpty,
		mutationRate:  cfg.MutationRate,
		crossoverRate: cfg.CrossoverRate,
	}, nil
}

// Initialize fills generation 0 with size random genomes, deduplicated by fingerprint
func (m *Manager) Initialize(size int) error {
	if err := m.expect("Initialize", StateEmpty); err != nil {
		return err
	}
	if err := m.checkSize("Initialize", size); err != nil {
		return err
	}

	seen := make(map[string]bool, size)
	members := make([]Member, 0, size)
	for len(members) < size {
		g, err := m.uniqueRandom(0, seen)
		if err != nil {
			return err
		}
		seen[g.Fingerprint()] = true
		members = append(members, Member{Genome: g})
	}

	m.reset(0, members)
	m.logger.WithField("size", size).Info("Initialized population")
	return nil
}

// Seed initializes generation 0 from caller-supplied genomes
func (m *Manager) Seed(genomes []*genome.StrategyGenome) error {
	if err := m.expect("Seed", StateEmpty); err != nil {
		return err
	}
	members, err := m.adopt("Seed", genomes)
	if err != nil {
		return err
	}
	m.reset(0, members)
	return nil
}

// Restore reinstates a previously persisted generation so a run can continue
func (m *Manager) Restore(generation int, genomes []*genome.StrategyGenome) error {
	if err := m.expect("Restore", StateEmpty); err != nil {
		return err
	}
	if generation < 0 {
		return everrors.NewValidationError("population", "Restore", "generation must be non-negative, got %d", generation)
	}
	members, err := m.adopt("Restore", genomes)
	if err != nil {
		return err
	}
	m.reset(generation, members)
	m.logger.WithFields(logrus.Fields{
		"generation": generation,
		"size":       len(members),
	}).Info("Restored population")
	return nil
}

// EvaluateAll scores every genome that has no result for this window yet and ranks the generation.
// Evaluation failures mark the genome FAILED and leave it out of ranking; only cancellation
// returns an error, in which case the population keeps its previous state.
func (m *Manager) EvaluateAll(ctx context.Context, window []types.OHLCV) error {
	if err := m.expect("EvaluateAll", StateInitialized, StateAdvanced); err != nil {
		return err
	}

	previous := m.state
	m.state = StateEvaluating
	key := backtest.WindowKey(window)

	var jobs []backtest.EvaluationJob
	for i, member := range m.members {
		if member.EvaluatedOn(key) {
			continue
		}
		member.Genome.Advance(genome.StatusBacktesting)
		jobs = append(jobs, backtest.EvaluationJob{Index: i, Genome: member.Genome})
	}

	started := time.Now()
	// a started generation always completes; cancellation is honoured between generations
	outcomes, err := m.pool.Run(context.WithoutCancel(ctx), jobs, window, backtest.NewProgressTracker(len(jobs)))
	if err != nil {
		m.state = previous
		return fmt.Errorf("evaluating generation %d: %w", m.generation, err)
	}

	for _, outcome := range outcomes {
		member := &m.members[outcome.Index]
		monitoring.RecordEvaluation(outcome.Error != nil, outcome.Duration.Seconds())

		if outcome.Error != nil {
			member.Result = nil
			member.Err = outcome.Error
			member.Genome.Advance(genome.StatusFailed)
			m.logger.WithFields(logrus.Fields{
				"genome_id": outcome.GenomeID,
				"category":  everrors.CategoryOf(outcome.Error),
			}).WithError(outcome.Error).Warn("Genome evaluation failed")
			continue
		}

		result := outcome.Result
		member.Result = &result
		member.Err = nil
		member.Genome.Advance(genome.StatusBacktestComplete)
	}

	m.evalDuration = time.Since(started)
	m.windowKey = key
	m.ranked = Rank(m.members)
	m.state = StateRanked

	m.logger.WithFields(logrus.Fields{
		"generation": m.generation,
		"evaluated":  len(jobs),
		"workers":    m.pool.Workers(),
		"duration":   m.evalDuration,
	}).Debug("Generation evaluated")
	return nil
}

// Advance produces generation+1: the elites unchanged, then offspring of rank-selected parents.
// It returns the genomes that did not survive, already marked ARCHIVED.
func (m *Manager) Advance() ([]*genome.StrategyGenome, error) {
	if err := m.expect("Advance", StateRanked); err != nil {
		return nil, err
	}

	nextGen := m.generation + 1
	evaluable := lo.Filter(m.ranked, func(member Member, _ int) bool {
		return member.Evaluated()
	})

	next := make([]Member, 0, m.size)
	seen := make(map[string]bool, m.size)

	eliteCount := m.cfg.EliteSize
	if eliteCount > len(evaluable) {
		eliteCount = len(evaluable)
	}
	for _, elite := range evaluable[:eliteCount] {
		next = append(next, elite)
		seen[elite.Genome.Fingerprint()] = true
	}

	for len(next) < m.size {
		var child *genome.StrategyGenome
		var err error
		if len(evaluable) == 0 {
			child, err = m.uniqueRandom(nextGen, seen)
		} else {
			child, err = m.uniqueOffspring(evaluable, nextGen, seen)
		}
		if err != nil {
			return nil, err
		}
		seen[child.Fingerprint()] = true
		next = append(next, Member{Genome: child})
	}

	survivors := make(map[string]bool, len(next))
	for _, member := range next {
		survivors[member.ID()] = true
	}
	var retired []*genome.StrategyGenome
	for _, member := range m.members {
		if survivors[member.ID()] || member.Genome.Status().IsTerminal() {
			continue
		}
		member.Genome.Advance(genome.StatusArchived)
		retired = append(retired, member.Genome)
	}

	if len(evaluable) == 0 {
		m.logger.WithField("generation", nextGen).Warn("No genome was evaluable, refilled population with random genomes")
	}

	m.members = next
	m.ranked = nil
	m.generation = nextGen
	m.state = StateAdvanced
	return retired, nil
}

// Snapshot returns a copy of the current generation
func (m *Manager) Snapshot() Population {
	return Population{
		Generation: m.generation,
		State:      m.state,
		WindowKey:  m.windowKey,
		Members:    append([]Member(nil), m.members...),
	}
}

// Ranked returns the members of the last evaluated generation, best first
func (m *Manager) Ranked() []Member {
	return append([]Member(nil), m.ranked...)
}

// Best returns the highest ranked evaluated member
func (m *Manager) Best() (Member, bool) {
	if len(m.ranked) == 0 || !m.ranked[0].Evaluated() {
		return Member{}, false
	}
	return m.ranked[0], true
}

// Stats summarizes the last evaluated generation
func (m *Manager) Stats() GenerationStats {
	stats := GenerationStats{
		Generation:    m.generation,
		MutationRate:  m.mutationRate,
		CrossoverRate: m.crossoverRate,
		Duration:      m.evalDuration,
		Failed: lo.CountBy(m.ranked, func(member Member) bool {
			return member.Failed()
		}),
	}

	scores := lo.Map(lo.Filter(m.ranked, func(member Member, _ int) bool {
		return member.Evaluated()
	}), func(member Member, _ int) float64 {
		return member.Fitness()
	})
	stats.Evaluated = len(scores)
	if len(scores) == 0 {
		return stats
	}

	sort.Float64s(scores)
	stats.BestFitness = scores[len(scores)-1]
	stats.WorstFitness = scores[0]
	stats.MedianFitness = median(scores)
	if best, ok := m.Best(); ok {
		stats.BestGenomeID = best.ID()
	}
	return stats
}

// SetRates replaces the operator rates used by subsequent Advance calls
func (m *Manager) SetRates(mutation, crossover float64) error {
	if mutation < 0 || mutation > 1 || crossover < 0 || crossover > 1 {
		return everrors.NewValidationError("population", "SetRates", "rates must be between 0 and 1, got mutation=%v crossover=%v", mutation, crossover)
	}
	m.mutationRate = mutation
	m.crossoverRate = crossover
	return nil
}

// Rates returns the mutation and crossover rates in effect
func (m *Manager) Rates() (mutation, crossover float64) {
	return m.mutationRate, m.crossoverRate
}

// Generation returns the current generation index
func (m *Manager) Generation() int {
	return m.generation
}

// State returns the per-generation state
func (m *Manager) State() PopulationState {
	return m.state
}

// Size returns the fixed population size
func (m *Manager) Size() int {
	return m.size
}

func (m *Manager) reset(generation int, members []Member) {
	m.size = len(members)
	m.generation = generation
	m.members = members
	m.ranked = nil
	m.windowKey = ""
	m.state = StateInitialized
}

func (m *Manager) expect(operation string, allowed ...PopulationState) error {
	for _, s := range allowed {
		if m.state == s {
			return nil
		}
	}
	return everrors.NewValidationError("population", operation, "not allowed in state %q", m.state).
		WithContext("generation", m.generation)
}

func (m *Manager) checkSize(operation string, size int) error {
	if size < 1 {
		return everrors.NewConfigurationError("population", operation, "population size must be at least 1, got %d", size)
	}
	if size < m.cfg.EliteSize {
		return everrors.NewConfigurationError("population", operation, "population size %d is smaller than elite size %d", size, m.cfg.EliteSize)
	}
	return nil
}

func (m *Manager) adopt(operation string, genomes []*genome.StrategyGenome) ([]Member, error) {
	if err := m.checkSize(operation, len(genomes)); err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(genomes))
	members := make([]Member, 0, len(genomes))
	for i, g := range genomes {
		if g == nil {
			return nil, everrors.NewValidationError("population", operation, "genome %d is nil", i)
		}
		if g.Status().IsTerminal() {
			return nil, everrors.NewValidationError("population", operation, "genome %s is %s", g.ID(), g.Status())
		}
		fp := g.Fingerprint()
		if other, dup := seen[fp]; dup {
			return nil, everrors.NewValidationError("population", operation, "genome %s duplicates %s", g.ID(), other).
				WithContext("fingerprint", fp)
		}
		seen[fp] = g.ID()
		members = append(members, Member{Genome: g})
	}
	return members, nil
}

// uniqueRandom samples a genome whose fingerprint is not in seen, accepting a duplicate after the retry budget
func (m *Manager) uniqueRandom(generation int, seen map[string]bool) (*genome.StrategyGenome, error) {
	var g *genome.StrategyGenome
	for attempt := 0; attempt <= m.cfg.DedupRetries; attempt++ {
		var err error
		g, err = m.sampler.Genome(generation)
		if err != nil {
			return nil, err
		}
		if !seen[g.Fingerprint()] {
			return g, nil
		}
	}
	m.warnDuplicate(g)
	return g, nil
}

func (m *Manager) uniqueOffspring(ranked []Member, generation int, seen map[string]bool) (*genome.StrategyGenome, error) {
	var child *genome.StrategyGenome
	for attempt := 0; attempt <= m.cfg.DedupRetries; attempt++ {
		a := m.operator.Select(ranked)
		b := m.operator.Select(ranked)

		var err error
		child, _, err = m.operator.Reproduce(a.Genome, b.Genome, generation, m.crossoverRate, m.mutationRate)
		if err != nil {
			if errors.Is(err, everrors.ErrIncompatibleParents) {
				return nil, err
			}
			return nil, fmt.Errorf("reproducing %s x %s: %w", a.ID(), b.ID(), err)
		}
		if !seen[child.Fingerprint()] {
			return child, nil
		}
	}
	m.warnDuplicate(child)
	return child, nil
}

func (m *Manager) warnDuplicate(g *genome.StrategyGenome) {
	m.logger.WithFields(logrus.Fields{
		"genome_id":   g.ID(),
		"fingerprint": g.Fingerprint(),
		"retries":     m.cfg.DedupRetries,
	}).Warn("Accepting duplicate genome after exhausting dedup retries")
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
