package orchestrator

import (
	"context"
	"time"

	"github.com/ducminhle1904/strategy-evolver/pkg/config"
	"github.com/ducminhle1904/strategy-evolver/pkg/optimization"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// ControllerState is the lifecycle state of an evolution run
type ControllerState string

const (
	StateIdle                  ControllerState = "IDLE"
	StateRunning               ControllerState = "RUNNING"
	StateConverged             ControllerState = "CONVERGED"
	StateMaxGenerationsReached ControllerState = "MAX_GENERATIONS_REACHED"
	StateAborted               ControllerState = "ABORTED"
	StateTerminated            ControllerState = "TERMINATED"
)

// TerminationReason explains why a run stopped
type TerminationReason string

const (
	ReasonConverged           TerminationReason = "converged"
	ReasonMaxGenerations      TerminationReason = "max_generations_reached"
	ReasonCancelled           TerminationReason = "cancelled"
	ReasonPersistenceFailure  TerminationReason = "persistence_failure"
	ReasonIncompatibleParents TerminationReason = "incompatible_parents"
	ReasonWindowUnavailable   TerminationReason = "window_unavailable"
	ReasonInternalError       TerminationReason = "internal_error"
)

// WindowSource supplies the market window a generation is evaluated against
type WindowSource interface {
	Window(ctx context.Context, generation int) ([]types.OHLCV, error)
}

// GenerationObserver is called after each generation has been evaluated and persisted.
// It runs on the controller goroutine and must not block.
type GenerationObserver func(run EvolutionRun, stats optimization.GenerationStats, ranked []optimization.Member)

// EvolutionRun is the persisted record of one evolution run
type EvolutionRun struct {
	RunID                string                 `json:"run_id"`
	ConfigSnapshot       config.EvolutionConfig `json:"config_snapshot"`
	StartTime            time.Time              `json:"start_time"`
	EndTime              *time.Time             `json:"end_time,omitempty"`
	BestGenomeID         string                 `json:"best_genome_id,omitempty"`
	BestFitness          float64                `json:"best_fitness"`
	GenerationsCompleted int                    `json:"generations_completed"`
	TerminationReason    TerminationReason      `json:"termination_reason,omitempty"`
	Error                string                 `json:"error,omitempty"`
	// State is RUNNING while the run is live and TERMINATED afterwards; Outcome keeps the terminal cause
	State   ControllerState `json:"state"`
	Outcome ControllerState `json:"outcome,omitempty"`

	// Generation is the index of the population referenced by PopulationIDs
	Generation        int                            `json:"generation"`
	PopulationIDs     []string                       `json:"population_ids"`
	GenerationStats   []optimization.GenerationStats `json:"generation_stats"`
	// ConvergenceStreak and ConvergenceID report the longest per-genome threshold streak
	ConvergenceStreak int                            `json:"convergence_streak"`
	ConvergenceID     string                         `json:"convergence_genome_id,omitempty"`
	Streaks           map[string]int                 `json:"streaks,omitempty"`
	PreviousStreaks   map[string]int                 `json:"previous_streaks,omitempty"`
	MutationRate      float64                        `json:"mutation_rate"`
	CrossoverRate     float64                        `json:"crossover_rate"`
}

// Finished reports whether the run reached a terminal outcome other than ABORTED
func (r EvolutionRun) Finished() bool {
	return r.State == StateTerminated && r.Outcome != StateAborted
}

// Duration returns the wall time of the run so far
func (r EvolutionRun) Duration() time.Duration {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

func (r EvolutionRun) clone() EvolutionRun {
	out := r
	out.ConfigSnapshot = r.ConfigSnapshot.Clone()
	out.PopulationIDs = append([]string(nil), r.PopulationIDs...)
	out.GenerationStats = append([]optimization.GenerationStats(nil), r.GenerationStats...)
	out.Streaks = copyStreaks(r.Streaks)
	out.PreviousStreaks = copyStreaks(r.PreviousStreaks)
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	return out
}

func copyStreaks(streaks map[string]int) map[string]int {
	if streaks == nil {
		return nil
	}
	out := make(map[string]int, len(streaks))
	for id, n := range streaks {
		out[id] = n
	}
	return out
}
