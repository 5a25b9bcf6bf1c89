package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
	"github.com/ducminhle1904/strategy-evolver/pkg/types"
)

// EvaluationJob is one genome to score against a shared window
type EvaluationJob struct {
	Index  int
	Genome *genome.StrategyGenome
}

// EvaluationOutcome is the result of a job. Exactly one of Result or Error is meaningful.
type EvaluationOutcome struct {
	Index    int
	GenomeID string
	Result   FitnessResult
	Error    error
	Duration time.Duration
}

// WorkerPool runs evaluations with a bounded number of goroutines
type WorkerPool struct {
	workerCount int
	evaluator   GenomeEvaluator
}

// NewWorkerPool creates a pool; a non-positive worker count uses the number of CPUs
func NewWorkerPool(workerCount int, evaluator GenomeEvaluator) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
		evaluator:   evaluator,
	}
}

// Workers returns the concurrency bound
func (wp *WorkerPool) Workers() int {
	return wp.workerCount
}

// Run evaluates every job and returns the outcomes in job order once all have finished.
// Per-job failures are reported in the outcome; only context cancellation fails the batch.
func (wp *WorkerPool) Run(ctx context.Context, jobs []EvaluationJob, window []types.OHLCV, progress *ProgressTracker) ([]EvaluationOutcome, error) {
	outcomes := make([]EvaluationOutcome, len(jobs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(wp.workerCount)

	for i, job := range jobs {
		i, job := i, job
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = wp.processJob(job, window)
			if progress != nil {
				progress.Increment()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (wp *WorkerPool) processJob(job EvaluationJob, window []types.OHLCV) EvaluationOutcome {
	startTime := time.Now()
	outcome := EvaluationOutcome{
		Index:    job.Index,
		GenomeID: job.Genome.ID(),
	}
	outcome.Result, outcome.Error = wp.evaluator.Evaluate(job.Genome, window)
	outcome.Duration = time.Since(startTime)
	return outcome
}

// ProgressTracker counts completed evaluations of a batch
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// Progress returns completed, total and elapsed time
func (pt *ProgressTracker) Progress() (int, int, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()
	return pt.completed, pt.total, time.Since(pt.startTime)
}
