package optimization

import (
	"math/rand"
	"sort"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/pkg/genome"
)

// Mutation magnitudes
const (
	WeightPerturbation     = 0.25
	RiskPerturbation       = 0.02
	IndicatorReplaceChance = 0.1
)

// Origin records which operators produced an offspring
type Origin string

const (
	OriginCrossover    Origin = "crossover"
	OriginMutation     Origin = "mutation"
	OriginBoth         Origin = "crossover+mutation"
	OriginReproduction Origin = "reproduction"
)

// GeneticOperator implements ranking, selection, crossover and mutation over genomes.
// It is not safe for concurrent use.
type GeneticOperator struct {
	sampler       *genome.Sampler
	rng           *rand.Rand
	maxIndicators int
}

// NewGeneticOperator creates an operator that draws randomness and replacement indicators from the sampler
func NewGeneticOperator(sampler *genome.Sampler, maxIndicators int) *GeneticOperator {
	return &GeneticOperator{
		sampler:       sampler,
		rng:           sampler.Rand(),
		maxIndicators: maxIndicators,
	}
}

// Rank orders members by composite fitness descending. Ties go to the earlier generation, then the smaller id.
// Members without a usable result come last.
func Rank(members []Member) []Member {
	ranked := append([]Member(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Evaluated() != b.Evaluated() {
			return a.Evaluated()
		}
		if fa, fb := a.Fitness(), b.Fitness(); fa != fb {
			return fa > fb
		}
		if ga, gb := a.Genome.Generation(), b.Genome.Generation(); ga != gb {
			return ga < gb
		}
		return a.ID() < b.ID()
	})
	return ranked
}

// Select picks a parent by linear rank-based roulette. ranked must hold only evaluated members, best first.
func (op *GeneticOperator) Select(ranked []Member) Member {
	n := len(ranked)
	total := n * (n + 1) / 2
	pick := op.rng.Intn(total)
	for i := 0; i < n; i++ {
		pick -= n - i
		if pick < 0 {
			return ranked[i]
		}
	}
	return ranked[n-1]
}

// Crossover combines a prefix of parent A with a suffix of parent B
func (op *GeneticOperator) Crossover(a, b *genome.StrategyGenome, generation int) (*genome.StrategyGenome, error) {
	inds, risk, err := op.crossParts(a, b)
	if err != nil {
		return nil, err
	}
	return genome.NewWithID(op.sampler.NewID(), inds, risk, generation, []string{a.ID(), b.ID()})
}

// Mutate returns a perturbed copy of g with g as its single parent
func (op *GeneticOperator) Mutate(g *genome.StrategyGenome, generation int) (*genome.StrategyGenome, error) {
	inds, risk := op.mutateParts(g.Indicators(), g.Risk())
	return genome.NewWithID(op.sampler.NewID(), inds, risk, generation, []string{g.ID()})
}

// Reproduce fills one offspring slot. Crossover and mutation are drawn independently;
// when neither applies the child is a copy of parent A under a new id.
func (op *GeneticOperator) Reproduce(a, b *genome.StrategyGenome, generation int, crossoverRate, mutationRate float64) (*genome.StrategyGenome, Origin, error) {
	doCross := op.rng.Float64() < crossoverRate
	doMutate := op.rng.Float64() < mutationRate

	inds, risk := a.Indicators(), a.Risk()
	parents := []string{a.ID()}
	origin := OriginReproduction

	if doCross {
		var err error
		inds, risk, err = op.crossParts(a, b)
		if err != nil {
			return nil, "", err
		}
		parents = []string{a.ID(), b.ID()}
		origin = OriginCrossover
	}
	if doMutate {
		inds, risk = op.mutateParts(inds, risk)
		if origin == OriginCrossover {
			origin = OriginBoth
		} else {
			origin = OriginMutation
		}
	}

	child, err := genome.NewWithID(op.sampler.NewID(), inds, risk, generation, parents)
	if err != nil {
		return nil, "", err
	}
	return child, origin, nil
}

func (op *GeneticOperator) crossParts(a, b *genome.StrategyGenome) ([]genome.Indicator, genome.RiskParams, error) {
	if a == nil || b == nil {
		return nil, genome.RiskParams{}, everrors.NewIncompatibleParentsError("operators", "Crossover", "both parents are required")
	}
	aInds, bInds := a.Indicators(), b.Indicators()
	if len(aInds) == 0 && len(bInds) == 0 {
		return nil, genome.RiskParams{}, everrors.NewIncompatibleParentsError("operators", "Crossover", "neither parent has indicators").
			WithContext("parent_a", a.ID()).
			WithContext("parent_b", b.ID())
	}

	var candidates []genome.Indicator
	if len(aInds) > 0 {
		candidates = append(candidates, aInds[:1+op.rng.Intn(len(aInds))]...)
	}
	if len(bInds) > 0 {
		candidates = append(candidates, bInds[op.rng.Intn(len(bInds)):]...)
	}

	weightA := indexByType(aInds)
	weightB := indexByType(bInds)

	seen := make(map[genome.IndicatorType]bool, len(candidates))
	child := make([]genome.Indicator, 0, len(candidates))
	for _, ind := range candidates {
		if seen[ind.Type] || len(child) >= op.maxIndicators {
			continue
		}
		seen[ind.Type] = true
		if wa, okA := weightA[ind.Type]; okA {
			if wb, okB := weightB[ind.Type]; okB {
				ind.Weight = (wa + wb) / 2
			}
		}
		child = append(child, ind)
	}

	ra, rb := a.Risk(), b.Risk()
	risk := genome.RiskParams{
		MaxPositionSizePct: (ra.MaxPositionSizePct + rb.MaxPositionSizePct) / 2,
		MaxDrawdownPct:     (ra.MaxDrawdownPct + rb.MaxDrawdownPct) / 2,
		StopLossPct:        (ra.StopLossPct + rb.StopLossPct) / 2,
	}
	return child, risk, nil
}

func (op *GeneticOperator) mutateParts(inds []genome.Indicator, risk genome.RiskParams) ([]genome.Indicator, genome.RiskParams) {
	out := make([]genome.Indicator, len(inds))
	for i, ind := range inds {
		ind = ind.Clone()
		ind.Weight += (op.rng.Float64()*2 - 1) * WeightPerturbation
		if ind.Weight < genome.MinWeight {
			ind.Weight = genome.MinWeight
		}
		out[i] = ind
	}

	if len(out) > 0 && op.rng.Float64() < IndicatorReplaceChance {
		idx := op.rng.Intn(len(out))
		exclude := make(map[genome.IndicatorType]bool, len(out))
		for i, ind := range out {
			if i != idx {
				exclude[ind.Type] = true
			}
		}
		if replacement, ok := op.sampler.RandomIndicator(exclude); ok {
			out[idx] = replacement
		}
	}

	perturb := func(v float64) float64 {
		return genome.ClampFraction(v + (op.rng.Float64()*2-1)*RiskPerturbation)
	}
	risk = genome.RiskParams{
		MaxPositionSizePct: perturb(risk.MaxPositionSizePct),
		MaxDrawdownPct:     perturb(risk.MaxDrawdownPct),
		StopLossPct:        perturb(risk.StopLossPct),
	}
	return out, risk
}

func indexByType(inds []genome.Indicator) map[genome.IndicatorType]float64 {
	weights := make(map[genome.IndicatorType]float64, len(inds))
	for _, ind := range inds {
		if _, ok := weights[ind.Type]; !ok {
			weights[ind.Type] = ind.Weight
		}
	}
	return weights
}
