package genome

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// RiskParams are the per-strategy risk limits, each a fraction in (0, 1]
type RiskParams struct {
	MaxPositionSizePct float64 `json:"max_position_size_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	StopLossPct        float64 `json:"stop_loss_pct"`
}

// Validate checks that every fraction is within (0, 1]
func (r RiskParams) Validate() error {
	for name, v := range map[string]float64{
		"max_position_size_pct": r.MaxPositionSizePct,
		"max_drawdown_pct":      r.MaxDrawdownPct,
		"stop_loss_pct":         r.StopLossPct,
	} {
		if math.IsNaN(v) || v <= 0 || v > 1 {
			return everrors.NewValidationError("genome", "ValidateRisk", "%s=%v must be within (0, 1]", name, v)
		}
	}
	return nil
}

// StrategyGenome is an immutable candidate strategy. Only its status changes after creation.
type StrategyGenome struct {
	id          string
	indicators  []Indicator
	risk        RiskParams
	generation  int
	parentIDs   []string
	createdAt   time.Time
	fingerprint string

	mu     sync.RWMutex
	status StrategyStatus
}

// New validates the inputs and creates a genome with a fresh UUID in GENERATED status
func New(indicators []Indicator, risk RiskParams, generation int, parentIDs []string) (*StrategyGenome, error) {
	return NewWithID(uuid.NewString(), indicators, risk, generation, parentIDs)
}

// NewWithID is New with a caller-chosen id
func NewWithID(id string, indicators []Indicator, risk RiskParams, generation int, parentIDs []string) (*StrategyGenome, error) {
	if id == "" {
		return nil, everrors.NewValidationError("genome", "New", "id must not be empty")
	}
	if len(indicators) == 0 {
		return nil, everrors.NewValidationError("genome", "New", "at least one indicator is required")
	}
	for _, ind := range indicators {
		if err := ind.Validate(); err != nil {
			return nil, err
		}
	}
	if err := risk.Validate(); err != nil {
		return nil, err
	}
	if generation < 0 {
		return nil, everrors.NewValidationError("genome", "New", "generation must be non-negative, got %d", generation)
	}
	if len(parentIDs) > 2 {
		return nil, everrors.NewValidationError("genome", "New", "at most two parents allowed, got %d", len(parentIDs))
	}

	g := &StrategyGenome{
		id:         id,
		indicators: cloneIndicators(indicators),
		risk:       risk,
		generation: generation,
		parentIDs:  append([]string(nil), parentIDs...),
		createdAt:  time.Now().UTC(),
		status:     StatusGenerated,
	}
	g.fingerprint = computeFingerprint(g.indicators, g.risk)
	return g, nil
}

func (g *StrategyGenome) ID() string { return g.id }
func (g *StrategyGenome) Risk() RiskParams { return g.risk }
func (g *StrategyGenome) Generation() int { return g.generation }
func (g *StrategyGenome) CreatedAt() time.Time { return g.createdAt }
func (g *StrategyGenome) NumIndicators() int { return len(g.indicators) }
func (g *StrategyGenome) ParentIDs() []string { return append([]string(nil), g.parentIDs...) }
func (g *StrategyGenome) Indicators() []Indicator { return cloneIndicators(g.indicators) }

// Fingerprint is a SHA-256 hex digest of the canonical indicator set and risk parameters.
// It ignores id, lineage, status and indicator order.
func (g *StrategyGenome) Fingerprint() string {
	return g.fingerprint
}

// MaxLookback is the largest warm-up any indicator of the genome needs
func (g *StrategyGenome) MaxLookback() int {
	lookback := 0
	for _, ind := range g.indicators {
		if l := ind.Lookback(); l > lookback {
			lookback = l
		}
	}
	return lookback
}

// HasIndicator reports whether the genome already uses an indicator of type t
func (g *StrategyGenome) HasIndicator(t IndicatorType) bool {
	for _, ind := range g.indicators {
		if ind.Type == t {
			return true
		}
	}
	return false
}

// Status returns the current lifecycle status
func (g *StrategyGenome) Status() StrategyStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Transition moves the genome to next, rejecting backward moves and moves out of a terminal status
func (g *StrategyGenome) Transition(next StrategyStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !CanTransition(g.status, next) {
		return everrors.NewValidationError("genome", "Transition", "illegal status transition %s -> %s", g.status, next).
			WithContext("genome_id", g.id)
	}
	g.status = next
	return nil
}

// Advance moves forward to next when legal and reports whether the status changed
func (g *StrategyGenome) Advance(next StrategyStatus) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == next || !CanTransition(g.status, next) {
		return false
	}
	g.status = next
	return true
}

func (g *StrategyGenome) String() string {
	parts := make([]string, len(g.indicators))
	for i, ind := range g.indicators {
		parts[i] = ind.String()
	}
	return fmt.Sprintf("genome %s gen=%d [%s]", g.id, g.generation, strings.Join(parts, " "))
}

// Document is the persisted form of a genome
type Document struct {
	ID          string         `json:"id"`
	Indicators  []Indicator    `json:"indicators"`
	RiskParams  RiskParams     `json:"risk_params"`
	Generation  int            `json:"generation"`
	ParentIDs   []string       `json:"parent_ids"`
	CreatedAt   time.Time      `json:"created_at"`
	Status      StrategyStatus `json:"status"`
	Fingerprint string         `json:"fingerprint"`
}

// Document snapshots the genome for storage
func (g *StrategyGenome) Document() Document {
	return Document{
		ID:          g.id,
		Indicators:  g.Indicators(),
		RiskParams:  g.risk,
		Generation:  g.generation,
		ParentIDs:   g.ParentIDs(),
		CreatedAt:   g.createdAt,
		Status:      g.Status(),
		Fingerprint: g.fingerprint,
	}
}

// FromDocument rebuilds a genome, re-running validation and keeping the stored id, timestamp and status
func FromDocument(doc Document) (*StrategyGenome, error) {
	g, err := NewWithID(doc.ID, doc.Indicators, doc.RiskParams, doc.Generation, doc.ParentIDs)
	if err != nil {
		return nil, err
	}
	if !doc.Status.IsValid() {
		return nil, everrors.NewValidationError("genome", "FromDocument", "unknown status %q", doc.Status)
	}
	if doc.Fingerprint != "" && doc.Fingerprint != g.fingerprint {
		return nil, everrors.NewValidationError("genome", "FromDocument", "fingerprint mismatch for %s", doc.ID)
	}
	g.createdAt = doc.CreatedAt
	g.status = doc.Status
	return g, nil
}

func cloneIndicators(in []Indicator) []Indicator {
	out := make([]Indicator, len(in))
	for i, ind := range in {
		out[i] = ind.Clone()
	}
	return out
}

func computeFingerprint(indicators []Indicator, risk RiskParams) string {
	type entry struct {
		canonical string
		weight    float64
	}
	entries := make([]entry, len(indicators))
	for i, ind := range indicators {
		entries[i] = entry{canonical: ind.canonical(), weight: ind.Weight}
	}
	// canonical starts with the type name, so this orders by type, then parameters, then weight
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].canonical != entries[j].canonical {
			return entries[i].canonical < entries[j].canonical
		}
		return entries[i].weight < entries[j].weight
	})

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.canonical)
		b.WriteString("|w=")
		b.WriteString(formatFloat(e.weight))
		b.WriteByte(';')
	}
	b.WriteString("risk=")
	b.WriteString(formatFloat(risk.MaxPositionSizePct))
	b.WriteByte(',')
	b.WriteString(formatFloat(risk.MaxDrawdownPct))
	b.WriteByte(',')
	b.WriteString(formatFloat(risk.StopLossPct))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
