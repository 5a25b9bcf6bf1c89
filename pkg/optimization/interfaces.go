package optimization

import (
	"time"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// PopulationState is the per-generation state of the population manager
type PopulationState string

const (
	StateEmpty       PopulationState = ""
	StateInitialized PopulationState = "INITIALIZED"
	StateEvaluating  PopulationState = "EVALUATING"
	StateRanked      PopulationState = "RANKED"
	StateAdvanced    PopulationState = "ADVANCED"
)

// ManagerConfig holds the genetic algorithm parameters of a population
type ManagerConfig struct {
	EliteSize     int
	MutationRate  float64
	CrossoverRate float64
	MaxWorkers    int
	DedupRetries  int
	MaxIndicators int
}

func (c ManagerConfig) validate() error {
	if c.EliteSize < 0 {
		return everrors.NewConfigurationError("population", "NewManager", "elite size must be non-negative, got %d", c.EliteSize)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return everrors.NewConfigurationError("population", "NewManager", "mutation rate %v must be between 0 and 1", c.MutationRate)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return everrors.NewConfigurationError("population", "NewManager", "crossover rate %v must be between 0 and 1", c.CrossoverRate)
	}
	if c.MaxWorkers < 1 {
		return everrors.NewConfigurationError("population", "NewManager", "max workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.DedupRetries < 0 {
		return everrors.NewConfigurationError("population", "NewManager", "dedup retries must be non-negative, got %d", c.DedupRetries)
	}
	if c.MaxIndicators < 1 {
		return everrors.NewConfigurationError("population", "NewManager", "max indicators must be at least 1, got %d", c.MaxIndicators)
	}
	return nil
}

// Population is a read-only snapshot of one generation
type Population struct {
	Generation int
	State      PopulationState
	WindowKey  string
	Members    []Member
}

// GenerationStats summarizes one evaluated generation
type GenerationStats struct {
	Generation    int           `json:"generation"`
	BestFitness   float64       `json:"best_fitness"`
	MedianFitness float64       `json:"median_fitness"`
	WorstFitness  float64       `json:"worst_fitness"`
	Evaluated     int           `json:"evaluated"`
	Failed        int           `json:"failed"`
	BestGenomeID  string        `json:"best_genome_id"`
	MutationRate  float64       `json:"mutation_rate"`
	CrossoverRate float64       `json:"crossover_rate"`
	Duration      time.Duration `json:"duration"`
}
