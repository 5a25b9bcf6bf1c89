package genome

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

func smaIndicator(period, weight float64) Indicator {
	return Indicator{Type: IndicatorSMA, Parameters: map[string]float64{"period": period}, Weight: weight}
}

func rsiIndicator() Indicator {
	return Indicator{
		Type:       IndicatorRSI,
		Parameters: map[string]float64{"period": 14, "oversold": 30, "overbought": 70},
		Weight:     0.7,
	}
}

func defaultRisk() RiskParams {
	return RiskParams{MaxPositionSizePct: 0.1, MaxDrawdownPct: 0.25, StopLossPct: 0.02}
}

// TestNew_Valid tests creating a genome with valid inputs
func TestNew_Valid(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1), rsiIndicator()}, defaultRisk(), 0, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID())
	assert.Equal(t, StatusGenerated, g.Status())
	assert.Equal(t, 0, g.Generation())
	assert.Empty(t, g.ParentIDs())
	assert.Len(t, g.Fingerprint(), 64)
	assert.Equal(t, 20, g.MaxLookback())
}

// TestNew_Rejects tests the validation rules of New
func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		indicators []Indicator
		risk       RiskParams
		generation int
		parents    []string
	}{
		{"no indicators", nil, defaultRisk(), 0, nil},
		{"zero weight", []Indicator{smaIndicator(20, 0)}, defaultRisk(), 0, nil},
		{"negative weight", []Indicator{smaIndicator(20, -1)}, defaultRisk(), 0, nil},
		{"unknown type", []Indicator{{Type: "ichimoku", Parameters: map[string]float64{}, Weight: 1}}, defaultRisk(), 0, nil},
		{"unknown parameter", []Indicator{{Type: IndicatorSMA, Parameters: map[string]float64{"period": 20, "shift": 1}, Weight: 1}}, defaultRisk(), 0, nil},
		{"missing parameter", []Indicator{{Type: IndicatorRSI, Parameters: map[string]float64{"period": 14}, Weight: 1}}, defaultRisk(), 0, nil},
		{"period out of range", []Indicator{smaIndicator(500, 1)}, defaultRisk(), 0, nil},
		{"fractional period", []Indicator{smaIndicator(20.5, 1)}, defaultRisk(), 0, nil},
		{"macd fast above slow", []Indicator{{Type: IndicatorMACD, Parameters: map[string]float64{"fast": 30, "slow": 20, "signal": 9}, Weight: 1}}, defaultRisk(), 0, nil},
		{"zero position size", []Indicator{smaIndicator(20, 1)}, RiskParams{0, 0.25, 0.02}, 0, nil},
		{"drawdown above one", []Indicator{smaIndicator(20, 1)}, RiskParams{0.1, 1.5, 0.02}, 0, nil},
		{"negative generation", []Indicator{smaIndicator(20, 1)}, defaultRisk(), -1, nil},
		{"three parents", []Indicator{smaIndicator(20, 1)}, defaultRisk(), 1, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.indicators, tt.risk, tt.generation, tt.parents)
			require.Error(t, err)
			assert.ErrorIs(t, err, everrors.ErrValidation)
		})
	}
}

// TestFingerprint_OrderInvariant tests that indicator order does not change the fingerprint
func TestFingerprint_OrderInvariant(t *testing.T) {
	a, err := New([]Indicator{smaIndicator(20, 1), rsiIndicator()}, defaultRisk(), 0, nil)
	require.NoError(t, err)
	b, err := New([]Indicator{rsiIndicator(), smaIndicator(20, 1)}, defaultRisk(), 3, []string{a.ID()})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

// TestFingerprint_SensitiveToContent tests that parameter, weight and risk changes alter the fingerprint
func TestFingerprint_SensitiveToContent(t *testing.T) {
	base, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, nil)
	require.NoError(t, err)

	otherPeriod, _ := New([]Indicator{smaIndicator(21, 1)}, defaultRisk(), 0, nil)
	otherWeight, _ := New([]Indicator{smaIndicator(20, 1.1)}, defaultRisk(), 0, nil)
	risk := defaultRisk()
	risk.StopLossPct = 0.03
	otherRisk, _ := New([]Indicator{smaIndicator(20, 1)}, risk, 0, nil)

	assert.NotEqual(t, base.Fingerprint(), otherPeriod.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), otherWeight.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), otherRisk.Fingerprint())
}

// TestFingerprint_IgnoresStatus tests that status changes keep the fingerprint stable
func TestFingerprint_IgnoresStatus(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, nil)
	require.NoError(t, err)
	before := g.Fingerprint()

	require.NoError(t, g.Transition(StatusBacktesting))
	assert.Equal(t, before, g.Fingerprint())
}

// TestIndicators_ReturnsCopy tests that callers cannot mutate genome contents
func TestIndicators_ReturnsCopy(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, []string{"p1"})
	require.NoError(t, err)

	inds := g.Indicators()
	inds[0].Parameters["period"] = 99
	inds[0].Weight = 5
	parents := g.ParentIDs()
	parents[0] = "changed"

	assert.Equal(t, 20.0, g.Indicators()[0].Param("period"))
	assert.Equal(t, 1.0, g.Indicators()[0].Weight)
	assert.Equal(t, []string{"p1"}, g.ParentIDs())
}

// TestNew_CopiesInput tests that mutating the caller's slice after New has no effect
func TestNew_CopiesInput(t *testing.T) {
	inds := []Indicator{smaIndicator(20, 1)}
	g, err := New(inds, defaultRisk(), 0, nil)
	require.NoError(t, err)
	fp := g.Fingerprint()

	inds[0].Parameters["period"] = 50

	assert.Equal(t, 20, g.Indicators()[0].IntParam("period"))
	assert.Equal(t, fp, g.Fingerprint())
}

// TestTransition_ForwardOnly tests lifecycle moves
func TestTransition_ForwardOnly(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, nil)
	require.NoError(t, err)

	require.NoError(t, g.Transition(StatusBacktesting))
	require.NoError(t, g.Transition(StatusBacktestComplete))

	err = g.Transition(StatusBacktesting)
	assert.ErrorIs(t, err, everrors.ErrValidation)
	assert.Equal(t, StatusBacktestComplete, g.Status())

	require.NoError(t, g.Transition(StatusActive))
	require.NoError(t, g.Transition(StatusArchived))

	assert.Error(t, g.Transition(StatusFailed))
	assert.Error(t, g.Transition(StatusActive))
	assert.Equal(t, StatusArchived, g.Status())
}

// TestAdvance_BestEffort tests that Advance never moves backward and reports changes
func TestAdvance_BestEffort(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, nil)
	require.NoError(t, err)

	assert.True(t, g.Advance(StatusBacktesting))
	assert.False(t, g.Advance(StatusBacktesting))
	assert.True(t, g.Advance(StatusBacktestComplete))
	assert.False(t, g.Advance(StatusBacktesting))
	assert.Equal(t, StatusBacktestComplete, g.Status())

	assert.True(t, g.Advance(StatusFailed))
	assert.False(t, g.Advance(StatusArchived))
	assert.Equal(t, StatusFailed, g.Status())
}

// TestCanTransition tests the transition table
func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to StrategyStatus
		want     bool
	}{
		{StatusGenerated, StatusBacktesting, true},
		{StatusGenerated, StatusActive, true},
		{StatusActive, StatusLiveTesting, false},
		{StatusLiveTesting, StatusActive, true},
		{StatusBacktesting, StatusFailed, true},
		{StatusActive, StatusArchived, true},
		{StatusFailed, StatusGenerated, false},
		{StatusArchived, StatusFailed, false},
		{StatusGenerated, StrategyStatus("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

// TestDocument_RoundTrip tests persistence form and revalidation on load
func TestDocument_RoundTrip(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1), rsiIndicator()}, defaultRisk(), 2, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, g.Transition(StatusBacktesting))

	raw, err := json.Marshal(g.Document())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"risk_params"`)
	assert.Contains(t, string(raw), `"parent_ids"`)

	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	loaded, err := FromDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, g.ID(), loaded.ID())
	assert.Equal(t, g.Fingerprint(), loaded.Fingerprint())
	assert.Equal(t, StatusBacktesting, loaded.Status())
	assert.Equal(t, []string{"a", "b"}, loaded.ParentIDs())
	assert.True(t, g.CreatedAt().Equal(loaded.CreatedAt()))
}

// TestFromDocument_RejectsTampered tests that corrupted documents fail validation
func TestFromDocument_RejectsTampered(t *testing.T) {
	g, err := New([]Indicator{smaIndicator(20, 1)}, defaultRisk(), 0, nil)
	require.NoError(t, err)

	doc := g.Document()
	doc.Indicators[0].Parameters["period"] = 30
	_, err = FromDocument(doc)
	assert.ErrorIs(t, err, everrors.ErrValidation)

	doc = g.Document()
	doc.Status = "paused"
	_, err = FromDocument(doc)
	assert.ErrorIs(t, err, everrors.ErrValidation)
}

// TestSampler_GenomesAreValid tests that sampled genomes pass validation and use distinct types
func TestSampler_GenomesAreValid(t *testing.T) {
	s, err := NewSampler(rand.New(rand.NewSource(7)), AllIndicatorTypes, 4, defaultRisk())
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		g, err := s.Genome(0)
		require.NoError(t, err)
		assert.LessOrEqual(t, g.NumIndicators(), 4)

		seen := map[IndicatorType]bool{}
		for _, ind := range g.Indicators() {
			assert.False(t, seen[ind.Type], "duplicate indicator type %s", ind.Type)
			seen[ind.Type] = true
		}
		risk := g.Risk()
		assert.NoError(t, risk.Validate())
	}
}

// TestSampler_Reproducible tests that the same seed yields the same genomes and ids
func TestSampler_Reproducible(t *testing.T) {
	s1, err := NewSampler(rand.New(rand.NewSource(11)), AllIndicatorTypes, 3, defaultRisk())
	require.NoError(t, err)
	s2, err := NewSampler(rand.New(rand.NewSource(11)), AllIndicatorTypes, 3, defaultRisk())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		a, err := s1.Genome(0)
		require.NoError(t, err)
		b, err := s2.Genome(0)
		require.NoError(t, err)
		assert.Equal(t, a.ID(), b.ID())
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	}
}

// TestSampler_RandomIndicatorExclusion tests type exclusion
func TestSampler_RandomIndicatorExclusion(t *testing.T) {
	s, err := NewSampler(rand.New(rand.NewSource(1)), []IndicatorType{IndicatorSMA, IndicatorRSI}, 2, defaultRisk())
	require.NoError(t, err)

	ind, ok := s.RandomIndicator(map[IndicatorType]bool{IndicatorSMA: true})
	require.True(t, ok)
	assert.Equal(t, IndicatorRSI, ind.Type)

	_, ok = s.RandomIndicator(map[IndicatorType]bool{IndicatorSMA: true, IndicatorRSI: true})
	assert.False(t, ok)
}

// TestNewSampler_InvalidConfig tests sampler construction errors
func TestNewSampler_InvalidConfig(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewSampler(rng, nil, 2, defaultRisk())
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, err = NewSampler(rng, []IndicatorType{"ichimoku"}, 2, defaultRisk())
	assert.ErrorIs(t, err, everrors.ErrConfiguration)

	_, err = NewSampler(rng, AllIndicatorTypes, 0, defaultRisk())
	assert.ErrorIs(t, err, everrors.ErrConfiguration)
}

// TestIndicatorTypeFromString tests parsing of indicator names
func TestIndicatorTypeFromString(t *testing.T) {
	typ, err := IndicatorTypeFromString(" BBands ")
	require.NoError(t, err)
	assert.Equal(t, IndicatorBBands, typ)

	_, err = IndicatorTypeFromString("vwap")
	assert.ErrorIs(t, err, everrors.ErrValidation)
}
