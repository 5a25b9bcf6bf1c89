package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports the progress of the current run over HTTP
type HealthChecker struct {
	mu             sync.RWMutex
	startTime      time.Time
	runID          string
	state          string
	generation     int
	lastGeneration time.Time
	bestFitness    float64
	errors         []string
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id,omitempty"`
	State          string    `json:"state"`
	Generation     int       `json:"generation"`
	LastGeneration time.Time `json:"last_generation"`
	BestFitness    float64   `json:"best_fitness"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		state:     "IDLE",
		errors:    make([]string, 0),
	}
}

// SetState records the controller state of a run
func (h *HealthChecker) SetState(runID, state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runID = runID
	h.state = state
}

// RecordGeneration records a completed generation
func (h *HealthChecker) RecordGeneration(generation int, best float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generation = generation
	h.bestFitness = best
	h.lastGeneration = time.Now()
}

// RecordError keeps the most recent errors
func (h *HealthChecker) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err.Error())
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// Status returns a snapshot of the run health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.state == "ABORTED" {
		status = "unhealthy"
	} else if len(h.errors) > 0 {
		status = "degraded"
	}

	return HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		RunID:          h.runID,
		State:          h.state,
		Generation:     h.generation,
		LastGeneration: h.lastGeneration,
		BestFitness:    h.bestFitness,
		Uptime:         time.Since(h.startTime).String(),
		Errors:         append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
