package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/storage"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
)

// Collections used by the repository
const (
	CollectionStrategies     = "strategies"
	CollectionFitnessResults = "fitness_results"
	CollectionEvolutionRuns  = "evolution_runs"
)

// Repository maps genomes, fitness results and run records onto a document store
type Repository struct {
	store storage.DocumentStore
}

// NewRepository creates a repository over store
func NewRepository(store storage.DocumentStore) *Repository {
	return &Repository{store: store}
}

// SaveGenome writes the current document of g, overwriting earlier versions
func (r *Repository) SaveGenome(ctx context.Context, g *genome.StrategyGenome) error {
	return r.put(ctx, "SaveGenome", CollectionStrategies, g.ID(), g.Document())
}

// LoadGenome reads and re-validates a genome
func (r *Repository) LoadGenome(ctx context.Context, id string) (*genome.StrategyGenome, error) {
	var doc genome.Document
	if err := r.get(ctx, "LoadGenome", CollectionStrategies, id, &doc); err != nil {
		return nil, err
	}
	return genome.FromDocument(doc)
}

// ListGenomes returns every stored genome ordered by id
func (r *Repository) ListGenomes(ctx context.Context) ([]*genome.StrategyGenome, error) {
	raw, err := r.list(ctx, "ListGenomes", CollectionStrategies)
	if err != nil {
		return nil, err
	}
	genomes := make([]*genome.StrategyGenome, 0, len(raw))
	for _, body := range raw {
		var doc genome.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decoding genome: %w", err)
		}
		g, err := genome.FromDocument(doc)
		if err != nil {
			return nil, err
		}
		genomes = append(genomes, g)
	}
	return genomes, nil
}

// SaveResult writes a fitness result. Results are keyed by genome and window, so re-saving is idempotent.
func (r *Repository) SaveResult(ctx context.Context, result backtest.FitnessResult) error {
	return r.put(ctx, "SaveResult", CollectionFitnessResults, result.ID, result)
}

// ResultsFor returns every stored result of a genome
func (r *Repository) ResultsFor(ctx context.Context, genomeID string) ([]backtest.FitnessResult, error) {
	raw, err := r.list(ctx, "ResultsFor", CollectionFitnessResults)
	if err != nil {
		return nil, err
	}
	var results []backtest.FitnessResult
	for _, body := range raw {
		var result backtest.FitnessResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding fitness result: %w", err)
		}
		if result.GenomeID == genomeID {
			results = append(results, result)
		}
	}
	return results, nil
}

// SaveRun writes the run record
func (r *Repository) SaveRun(ctx context.Context, run EvolutionRun) error {
	return r.put(ctx, "SaveRun", CollectionEvolutionRuns, run.RunID, run)
}

// LoadRun reads a run record; a missing run returns an error matching storage.ErrNotFound
func (r *Repository) LoadRun(ctx context.Context, runID string) (EvolutionRun, error) {
	var run EvolutionRun
	err := r.get(ctx, "LoadRun", CollectionEvolutionRuns, runID, &run)
	return run, err
}

// ListRuns returns every stored run record ordered by id
func (r *Repository) ListRuns(ctx context.Context) ([]EvolutionRun, error) {
	raw, err := r.list(ctx, "ListRuns", CollectionEvolutionRuns)
	if err != nil {
		return nil, err
	}
	runs := make([]EvolutionRun, 0, len(raw))
	for _, body := range raw {
		var run EvolutionRun
		if err := json.Unmarshal(body, &run); err != nil {
			return nil, fmt.Errorf("decoding run record: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *Repository) put(ctx context.Context, operation, collection, id string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	if err := r.store.Put(ctx, collection, id, body); err != nil {
		return persistenceError(operation, err).WithContext("collection", collection).WithContext("id", id)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, operation, collection, id string, dst interface{}) error {
	body, err := r.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s %s: %w", collection, id, err)
		}
		return persistenceError(operation, err).WithContext("collection", collection).WithContext("id", id)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *Repository) list(ctx context.Context, operation, collection string) ([][]byte, error) {
	raw, err := r.store.List(ctx, collection)
	if err != nil {
		return nil, persistenceError(operation, err).WithContext("collection", collection)
	}
	return raw, nil
}

// persistenceError keeps an existing PERSISTENCE error and wraps anything else into one
func persistenceError(operation string, err error) *everrors.EvolutionError {
	var evErr *everrors.EvolutionError
	if errors.As(err, &evErr) && evErr.Category == everrors.ErrorCategoryPersistence {
		return evErr
	}
	return everrors.NewPersistenceError("repository", operation, err)
}
