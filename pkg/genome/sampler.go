package genome

import (
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// Sampler draws random indicators and genomes. It is not safe for concurrent use.
type Sampler struct {
	rng           *rand.Rand
	types         []IndicatorType
	maxIndicators int
	riskDefaults  RiskParams
}

// NewSampler creates a sampler over the allowed indicator types
func NewSampler(rng *rand.Rand, types []IndicatorType, maxIndicators int, riskDefaults RiskParams) (*Sampler, error) {
	if rng == nil {
		return nil, everrors.NewConfigurationError("genome", "NewSampler", "rng is required")
	}
	if len(types) == 0 {
		return nil, everrors.NewConfigurationError("genome", "NewSampler", "at least one indicator type is required")
	}
	for _, t := range types {
		if !t.IsValid() {
			return nil, everrors.NewConfigurationError("genome", "NewSampler", "unknown indicator type %q", t)
		}
	}
	if maxIndicators < 1 {
		return nil, everrors.NewConfigurationError("genome", "NewSampler", "max indicators must be at least 1, got %d", maxIndicators)
	}
	if err := riskDefaults.Validate(); err != nil {
		return nil, everrors.NewConfigurationError("genome", "NewSampler", "invalid risk defaults: %v", err)
	}
	return &Sampler{
		rng:           rng,
		types:         append([]IndicatorType(nil), types...),
		maxIndicators: maxIndicators,
		riskDefaults:  riskDefaults,
	}, nil
}

// Rand exposes the sampler's random source so operators share one seeded stream
func (s *Sampler) Rand() *rand.Rand {
	return s.rng
}

// Types returns the allowed indicator types
func (s *Sampler) Types() []IndicatorType {
	return append([]IndicatorType(nil), s.types...)
}

// NewID returns a UUID drawn from the seeded stream, so runs with the same seed reproduce ids
func (s *Sampler) NewID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Indicator samples parameters of type t from the schema choices and a weight in [SampleWeightMin, SampleWeightMax)
func (s *Sampler) Indicator(t IndicatorType) Indicator {
	schema := IndicatorSchema[t]

	// iterate in sorted order so the draw sequence is reproducible
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(map[string]float64, len(schema))
	for _, name := range names {
		spec := schema[name]
		params[name] = spec.Choices[s.rng.Intn(len(spec.Choices))]
	}
	weight := SampleWeightMin + s.rng.Float64()*(SampleWeightMax-SampleWeightMin)
	return Indicator{Type: t, Parameters: params, Weight: roundTo(weight, 4)}
}

// RandomIndicator samples an indicator of an allowed type not in exclude.
// It returns false when every allowed type is excluded.
func (s *Sampler) RandomIndicator(exclude map[IndicatorType]bool) (Indicator, bool) {
	candidates := make([]IndicatorType, 0, len(s.types))
	for _, t := range s.types {
		if !exclude[t] {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return Indicator{}, false
	}
	return s.Indicator(candidates[s.rng.Intn(len(candidates))]), true
}

// Risk samples risk parameters around the defaults, each scaled by a factor in [0.5, 1.5)
func (s *Sampler) Risk() RiskParams {
	scale := func(v float64) float64 {
		f := 1 - RiskSampleSpread + s.rng.Float64()*2*RiskSampleSpread
		return ClampFraction(roundTo(v*f, 4))
	}
	return RiskParams{
		MaxPositionSizePct: scale(s.riskDefaults.MaxPositionSizePct),
		MaxDrawdownPct:     scale(s.riskDefaults.MaxDrawdownPct),
		StopLossPct:        scale(s.riskDefaults.StopLossPct),
	}
}

// Genome samples a genome with 1..maxIndicators distinct indicator types
func (s *Sampler) Genome(generation int) (*StrategyGenome, error) {
	limit := s.maxIndicators
	if limit > len(s.types) {
		limit = len(s.types)
	}
	n := 1 + s.rng.Intn(limit)

	perm := s.rng.Perm(len(s.types))
	indicators := make([]Indicator, 0, n)
	for _, idx := range perm[:n] {
		indicators = append(indicators, s.Indicator(s.types[idx]))
	}
	return NewWithID(s.NewID(), indicators, s.Risk(), generation, nil)
}

// ClampFraction bounds a risk fraction into [MinRiskFraction, MaxRiskFraction]
func ClampFraction(v float64) float64 {
	return math.Max(MinRiskFraction, math.Min(MaxRiskFraction, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
