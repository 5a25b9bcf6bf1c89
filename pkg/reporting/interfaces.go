package reporting

import (
	"strings"

	"github.com/ducminhle1904/strategy-evolver/internal/backtest"
	"github.com/ducminhle1904/strategy-evolver/pkg/optimization"
	"github.com/ducminhle1904/strategy-evolver/pkg/orchestrator"
	"github.com/ducminhle1904/strategy-evolver/pkg/validation"
)

// Package reporting renders evolution runs for humans and spreadsheets

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintSummary(report RunReport)
	PrintGenerations(report RunReport)
	PrintTopGenomes(report RunReport)
	PrintValidation(report RunReport)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteWorkbook(report RunReport, path string) error
	WriteGenerationsCSV(report RunReport, path string) error
	WriteJSON(report RunReport, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle  int
	BaseStyle    int
	DecimalStyle int
	PercentStyle int
	GoodStyle    int
	BadStyle     int
	LabelStyle   int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	TopGenomes      int
}

// GenomeRow is one ranked genome of the final generation
type GenomeRow struct {
	Rank            int     `json:"rank"`
	ID              string  `json:"id"`
	Generation      int     `json:"generation"`
	Status          string  `json:"status"`
	Indicators      string  `json:"indicators"`
	Fitness         float64 `json:"fitness"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	ProfitFactor    float64 `json:"profit_factor"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	TotalReturn     float64 `json:"total_return"`
	NumTrades       int     `json:"num_trades"`
	MeetsThresholds bool    `json:"meets_thresholds"`
	Error           string  `json:"error,omitempty"`
}

// RunReport is everything a report needs about a run
type RunReport struct {
	Run        orchestrator.EvolutionRun `json:"run"`
	Genomes    []GenomeRow               `json:"genomes"`
	Validation []validation.Summary      `json:"validation,omitempty"`
}

// NewRunReport builds a report from a run record and the ranking of its last generation.
// A non-positive limit keeps every genome.
func NewRunReport(run orchestrator.EvolutionRun, ranked []optimization.Member, limit int) RunReport {
	thresholds := backtest.Thresholds{
		MinSharpeRatio:  run.ConfigSnapshot.Thresholds.MinSharpeRatio,
		MinProfitFactor: run.ConfigSnapshot.Thresholds.MinProfitFactor,
		MaxMDDThreshold: run.ConfigSnapshot.Thresholds.MaxMDDThreshold,
	}
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	rows := make([]GenomeRow, 0, limit)
	for i, member := range ranked[:limit] {
		row := GenomeRow{
			Rank:       i + 1,
			ID:         member.ID(),
			Generation: member.Genome.Generation(),
			Status:     member.Genome.Status().String(),
			Indicators: describeIndicators(member),
			Fitness:    member.Fitness(),
		}
		if member.Evaluated() {
			r := member.Result
			row.SharpeRatio = r.SharpeRatio
			row.ProfitFactor = r.ProfitFactor
			row.MaxDrawdown = r.MaxDrawdown
			row.TotalReturn = r.TotalReturn
			row.NumTrades = r.NumTrades
			row.MeetsThresholds = thresholds.Meets(*r)
		}
		if member.Err != nil {
			row.Error = member.Err.Error()
		}
		rows = append(rows, row)
	}
	return RunReport{Run: run, Genomes: rows}
}

func describeIndicators(member optimization.Member) string {
	indicators := member.Genome.Indicators()
	parts := make([]string, len(indicators))
	for i, ind := range indicators {
		parts[i] = ind.String()
	}
	return strings.Join(parts, " ")
}
