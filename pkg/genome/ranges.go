package genome

// ParamSpec bounds one indicator parameter. Choices are the values the sampler draws from;
// Min/Max are the bounds validation accepts.
type ParamSpec struct {
	Min     float64
	Max     float64
	Integer bool
	Choices []float64
}

// IndicatorSchema lists the parameters each indicator type requires
var IndicatorSchema = map[IndicatorType]map[string]ParamSpec{
	IndicatorSMA: {
		"period": {Min: 2, Max: 200, Integer: true, Choices: []float64{10, 15, 20, 25, 30, 40, 50, 60, 75, 100}},
	},
	IndicatorEMA: {
		"period": {Min: 2, Max: 200, Integer: true, Choices: []float64{15, 20, 25, 30, 40, 50, 60, 75, 100, 120}},
	},
	IndicatorRSI: {
		"period":     {Min: 2, Max: 50, Integer: true, Choices: []float64{10, 12, 14, 16, 18, 20, 22, 25}},
		"oversold":   {Min: 5, Max: 45, Choices: []float64{20, 25, 30, 35, 40}},
		"overbought": {Min: 55, Max: 95, Choices: []float64{60, 65, 70, 75, 80}},
	},
	IndicatorMACD: {
		"fast":   {Min: 2, Max: 50, Integer: true, Choices: []float64{6, 8, 10, 12, 14, 16, 18}},
		"slow":   {Min: 5, Max: 100, Integer: true, Choices: []float64{20, 22, 24, 26, 28, 30, 32, 35}},
		"signal": {Min: 2, Max: 50, Integer: true, Choices: []float64{7, 8, 9, 10, 12, 14}},
	},
	IndicatorBBands: {
		"period": {Min: 5, Max: 100, Integer: true, Choices: []float64{10, 14, 16, 18, 20, 22, 25, 28, 30}},
		"stddev": {Min: 0.5, Max: 4, Choices: []float64{1.5, 1.8, 2.0, 2.2, 2.5, 2.8, 3.0}},
	},
	IndicatorATR: {
		"period":     {Min: 2, Max: 100, Integer: true, Choices: []float64{7, 10, 14, 20, 28}},
		"multiplier": {Min: 0.5, Max: 5, Choices: []float64{1.0, 1.5, 2.0, 2.5, 3.0}},
	},
	IndicatorStoch: {
		"k_period":   {Min: 3, Max: 50, Integer: true, Choices: []float64{5, 9, 14, 21}},
		"d_period":   {Min: 1, Max: 20, Integer: true, Choices: []float64{3, 5}},
		"oversold":   {Min: 5, Max: 45, Choices: []float64{15, 20, 25, 30}},
		"overbought": {Min: 55, Max: 95, Choices: []float64{70, 75, 80, 85}},
	},
}

// Weight and risk sampling bounds
const (
	MinWeight        = 0.01
	SampleWeightMin  = 0.5
	SampleWeightMax  = 1.5
	MinRiskFraction  = 0.001
	MaxRiskFraction  = 1.0
	RiskSampleSpread = 0.5
)
