package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generation metrics
	generationIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "evolver_generation",
			Help: "Index of the last completed generation",
		},
	)

	fitnessGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evolver_fitness",
			Help: "Composite fitness of the last completed generation",
		},
		[]string{"stat"},
	)

	// Evaluation metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolver_evaluations_total",
			Help: "Total number of genome evaluations",
		},
		[]string{"outcome"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evolver_evaluation_duration_seconds",
			Help:    "Distribution of single genome evaluation times",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rate metrics
	operatorRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evolver_operator_rate",
			Help: "Mutation and crossover rates in effect",
		},
		[]string{"operator"},
	)

	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolver_runs_total",
			Help: "Total number of finished runs by termination state",
		},
		[]string{"termination"},
	)

	persistenceRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evolver_persistence_retries_total",
			Help: "Total number of retried store operations",
		},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(generationIndex)
	prometheus.MustRegister(fitnessGauge)
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(operatorRate)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(persistenceRetries)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordGeneration records the fitness spread of a completed generation
func RecordGeneration(generation int, best, median, worst float64) {
	generationIndex.Set(float64(generation))
	fitnessGauge.WithLabelValues("best").Set(best)
	fitnessGauge.WithLabelValues("median").Set(median)
	fitnessGauge.WithLabelValues("worst").Set(worst)
}

// RecordEvaluation records one evaluation outcome and its duration in seconds
func RecordEvaluation(failed bool, seconds float64) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	evaluationsTotal.WithLabelValues(outcome).Inc()
	evaluationDuration.Observe(seconds)
}

// UpdateRates records the operator rates in effect
func UpdateRates(mutation, crossover float64) {
	operatorRate.WithLabelValues("mutation").Set(mutation)
	operatorRate.WithLabelValues("crossover").Set(crossover)
}

// RecordRun records a finished run
func RecordRun(termination string) {
	runsTotal.WithLabelValues(termination).Inc()
}

// RecordPersistenceRetry records a retried store call
func RecordPersistenceRetry() {
	persistenceRetries.Inc()
}
