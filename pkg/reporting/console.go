package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter renders run reports as tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return NewConsoleReporter(os.Stdout)
}

// NewConsoleReporter creates a console reporter writing to out
func NewConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintSummary prints the run record
func (r *DefaultConsoleReporter) PrintSummary(report RunReport) {
	run := report.Run
	cfg := run.ConfigSnapshot

	end := "-"
	if run.EndTime != nil {
		end = run.EndTime.Format(time.RFC3339)
	}

	t := r.newTable("EVOLUTION RUN")
	t.AppendRows([]table.Row{
		{"Run ID", run.RunID},
		{"Outcome", outcomeOf(report)},
		{"Termination", string(run.TerminationReason)},
		{"Started", run.StartTime.Format(time.RFC3339)},
		{"Ended", end},
		{"Duration", run.Duration().Round(time.Millisecond)},
		{"Generations", run.GenerationsCompleted},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Population", cfg.PopulationSize},
		{"Elite", cfg.EliteSize},
		{"Mutation / Crossover", fmt.Sprintf("%.2f / %.2f", run.MutationRate, run.CrossoverRate)},
		{"Seed", cfg.Seed},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Best genome", run.BestGenomeID},
		{"Best fitness", fmt.Sprintf("%.4f", run.BestFitness)},
	})
	if run.Error != "" {
		t.AppendRow(table.Row{"Error", run.Error})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

// PrintGenerations prints the per-generation statistics
func (r *DefaultConsoleReporter) PrintGenerations(report RunReport) {
	t := r.newTable("GENERATIONS")
	t.AppendHeader(table.Row{"Gen", "Best", "Median", "Worst", "Evaluated", "Failed", "Mutation", "Crossover", "Duration"})
	for _, s := range report.Run.GenerationStats {
		t.AppendRow(table.Row{
			s.Generation,
			fmt.Sprintf("%.4f", s.BestFitness),
			fmt.Sprintf("%.4f", s.MedianFitness),
			fmt.Sprintf("%.4f", s.WorstFitness),
			s.Evaluated,
			s.Failed,
			fmt.Sprintf("%.2f", s.MutationRate),
			fmt.Sprintf("%.2f", s.CrossoverRate),
			s.Duration.Round(time.Millisecond),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}

// PrintTopGenomes prints the ranked genomes of the final generation
func (r *DefaultConsoleReporter) PrintTopGenomes(report RunReport) {
	t := r.newTable("TOP GENOMES")
	t.AppendHeader(table.Row{"#", "Genome", "Gen", "Status", "Fitness", "Sharpe", "PF", "MDD", "Return", "Trades", "Pass", "Indicators"})
	for _, g := range report.Genomes {
		pass := "no"
		if g.MeetsThresholds {
			pass = "yes"
		}
		t.AppendRow(table.Row{
			g.Rank,
			shortID(g.ID),
			g.Generation,
			g.Status,
			fmt.Sprintf("%.4f", g.Fitness),
			fmt.Sprintf("%.3f", g.SharpeRatio),
			fmt.Sprintf("%.2f", g.ProfitFactor),
			fmt.Sprintf("%.1f%%", g.MaxDrawdown*100),
			fmt.Sprintf("%.2f%%", g.TotalReturn*100),
			g.NumTrades,
			pass,
			g.Indicators,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 12, WidthMax: 60},
	})
	t.Render()
}

// PrintValidation prints the out-of-sample comparison of the validated genomes
func (r *DefaultConsoleReporter) PrintValidation(report RunReport) {
	t := r.newTable("HOLDOUT VALIDATION")
	t.AppendHeader(table.Row{"Genome", "Folds", "Train Sharpe", "Test Sharpe", "Train Return", "Test Return", "Test MDD", "Degradation", "Pass Rate", "Risk"})
	for _, s := range report.Validation {
		t.AppendRow(table.Row{
			shortID(s.GenomeID),
			len(s.Results),
			fmt.Sprintf("%.3f", s.AverageTrainSharpe),
			fmt.Sprintf("%.3f", s.AverageTestSharpe),
			fmt.Sprintf("%.2f%%", s.AverageTrainReturn),
			fmt.Sprintf("%.2f%%", s.AverageTestReturn),
			fmt.Sprintf("%.1f%%", s.AverageTestMDD),
			fmt.Sprintf("%.1f%%", s.ReturnDegradation),
			fmt.Sprintf("%.0f%%", s.PassRate*100),
			s.OverfittingRisk,
		})
	}
	t.Render()
}

func outcomeOf(report RunReport) string {
	if report.Run.Outcome != "" {
		return string(report.Run.Outcome)
	}
	return string(report.Run.State)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
