package optimization

import (
	"math"
	"math/rand"
)

// Rate tuning constants
const (
	RateStep         = 0.05
	MinOperatorRate  = 0.01
	MaxOperatorRate  = 1.0
	ExplorationRate  = 0.1
	tunerStateCount  = 2
	tunerActionCount = 3
)

const (
	stateStalled = iota
	stateImproved
)

// rate adjustment per action: decrease, keep, increase
var actionDeltas = [tunerActionCount]float64{-1, 0, 1}

// TunerConfig holds the Q-learning parameters
type TunerConfig struct {
	LearningRate   float64
	DiscountFactor float64
	Episodes       int
}

// RateTuner adjusts the mutation rate (and the crossover rate inversely) from generation to
// generation with tabular Q-learning. The state is whether the best composite improved over the
// previous generation; the reward is the change in best composite.
type RateTuner struct {
	cfg TunerConfig
	rng *rand.Rand
	q   [tunerStateCount][tunerActionCount]float64

	mutation  float64
	crossover float64

	prevBest   float64
	hasPrev    bool
	lastState  int
	lastAction int
	pending    bool
	updates    int
}

// NewRateTuner creates a tuner starting from the configured rates
func NewRateTuner(rng *rand.Rand, cfg TunerConfig, mutation, crossover float64) *RateTuner {
	return &RateTuner{
		cfg:       cfg,
		rng:       rng,
		mutation:  clampRate(mutation),
		crossover: clampRate(crossover),
	}
}

// Observe feeds the best composite of the generation just evaluated and returns the rates for the next one.
// Once the episode budget is spent the rates are frozen.
func (t *RateTuner) Observe(best float64) (mutation, crossover float64) {
	state := stateStalled
	reward := 0.0
	if t.hasPrev {
		reward = best - t.prevBest
		if reward > 0 {
			state = stateImproved
		}
	}

	if t.pending {
		old := t.q[t.lastState][t.lastAction]
		target := reward + t.cfg.DiscountFactor*maxOf(t.q[state])
		t.q[t.lastState][t.lastAction] = old + t.cfg.LearningRate*(target-old)
		t.updates++
		t.pending = false
	}

	if t.updates < t.cfg.Episodes {
		action := t.chooseAction(state)
		delta := actionDeltas[action] * RateStep
		t.mutation = clampRate(t.mutation + delta)
		t.crossover = clampRate(t.crossover - delta)
		t.lastState = state
		t.lastAction = action
		t.pending = true
	}

	t.prevBest = best
	t.hasPrev = true
	return t.mutation, t.crossover
}

// Rates returns the current mutation and crossover rates
func (t *RateTuner) Rates() (mutation, crossover float64) {
	return t.mutation, t.crossover
}

// Updates returns the number of Q-value updates applied so far
func (t *RateTuner) Updates() int {
	return t.updates
}

func (t *RateTuner) chooseAction(state int) int {
	if t.rng.Float64() < ExplorationRate {
		return t.rng.Intn(tunerActionCount)
	}
	best := 1
	for a := 0; a < tunerActionCount; a++ {
		if t.q[state][a] > t.q[state][best] {
			best = a
		}
	}
	return best
}

func maxOf(values [tunerActionCount]float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func clampRate(v float64) float64 {
	return math.Max(MinOperatorRate, math.Min(MaxOperatorRate, v))
}
