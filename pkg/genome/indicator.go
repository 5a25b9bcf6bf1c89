package genome

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
)

// IndicatorType is the closed set of technical indicators a genome can use
type IndicatorType string

const (
	IndicatorSMA    IndicatorType = "sma"
	IndicatorEMA    IndicatorType = "ema"
	IndicatorRSI    IndicatorType = "rsi"
	IndicatorMACD   IndicatorType = "macd"
	IndicatorBBands IndicatorType = "bbands"
	IndicatorATR    IndicatorType = "atr"
	IndicatorStoch  IndicatorType = "stoch"
)

// AllIndicatorTypes in canonical order
var AllIndicatorTypes = []IndicatorType{
	IndicatorSMA, IndicatorEMA, IndicatorRSI, IndicatorMACD, IndicatorBBands, IndicatorATR, IndicatorStoch,
}

// IsValid reports whether t is one of the supported types
func (t IndicatorType) IsValid() bool {
	_, ok := IndicatorSchema[t]
	return ok
}

func (t IndicatorType) String() string {
	return string(t)
}

// IndicatorTypeFromString parses a type name case-insensitively
func IndicatorTypeFromString(s string) (IndicatorType, error) {
	t := IndicatorType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", everrors.NewValidationError("genome", "IndicatorTypeFromString", "unknown indicator type %q", s)
	}
	return t, nil
}

// Indicator is one weighted indicator of a strategy
type Indicator struct {
	Type       IndicatorType      `json:"type"`
	Parameters map[string]float64 `json:"parameters"`
	Weight     float64            `json:"weight"`
}

// Param returns a parameter value, 0 if absent
func (ind Indicator) Param(name string) float64 {
	return ind.Parameters[name]
}

// IntParam returns a parameter rounded to an int
func (ind Indicator) IntParam(name string) int {
	return int(math.Round(ind.Parameters[name]))
}

// Clone returns a deep copy
func (ind Indicator) Clone() Indicator {
	params := make(map[string]float64, len(ind.Parameters))
	for k, v := range ind.Parameters {
		params[k] = v
	}
	return Indicator{Type: ind.Type, Parameters: params, Weight: ind.Weight}
}

// Lookback is the number of leading bars the indicator needs before it emits a signal
func (ind Indicator) Lookback() int {
	switch ind.Type {
	case IndicatorSMA, IndicatorEMA, IndicatorBBands:
		return ind.IntParam("period")
	case IndicatorRSI, IndicatorATR:
		return ind.IntParam("period") + 1
	case IndicatorMACD:
		return ind.IntParam("slow") + ind.IntParam("signal")
	case IndicatorStoch:
		return ind.IntParam("k_period") + 2*ind.IntParam("d_period")
	default:
		return 0
	}
}

// Validate checks the type, weight and parameters against IndicatorSchema
func (ind Indicator) Validate() error {
	schema, ok := IndicatorSchema[ind.Type]
	if !ok {
		return everrors.NewValidationError("genome", "ValidateIndicator", "unknown indicator type %q", ind.Type)
	}
	if math.IsNaN(ind.Weight) || math.IsInf(ind.Weight, 0) || ind.Weight <= 0 {
		return everrors.NewValidationError("genome", "ValidateIndicator", "%s weight must be positive, got %v", ind.Type, ind.Weight)
	}
	for name := range ind.Parameters {
		if _, known := schema[name]; !known {
			return everrors.NewValidationError("genome", "ValidateIndicator", "%s has unrecognized parameter %q", ind.Type, name)
		}
	}
	for name, spec := range schema {
		v, present := ind.Parameters[name]
		if !present {
			return everrors.NewValidationError("genome", "ValidateIndicator", "%s is missing parameter %q", ind.Type, name)
		}
		if math.IsNaN(v) || v < spec.Min || v > spec.Max {
			return everrors.NewValidationError("genome", "ValidateIndicator",
				"%s parameter %q=%v outside [%v, %v]", ind.Type, name, v, spec.Min, spec.Max)
		}
		if spec.Integer && v != math.Trunc(v) {
			return everrors.NewValidationError("genome", "ValidateIndicator", "%s parameter %q must be an integer, got %v", ind.Type, name, v)
		}
	}
	if ind.Type == IndicatorMACD && ind.Parameters["fast"] >= ind.Parameters["slow"] {
		return everrors.NewValidationError("genome", "ValidateIndicator", "macd fast period must be below slow period")
	}
	return nil
}

// canonical renders the indicator with parameters in sorted key order
func (ind Indicator) canonical() string {
	keys := make([]string, 0, len(ind.Parameters))
	for k := range ind.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(ind.Type))
	b.WriteByte('|')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatFloat(ind.Parameters[k]))
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func (ind Indicator) String() string {
	return fmt.Sprintf("%s(w=%.3f)", ind.canonical(), ind.Weight)
}
