package reporting

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SummarySheet     = "Summary"
	GenerationsSheet = "Generations"
	GenomesSheet     = "Genomes"
	ValidationSheet  = "Validation"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteWorkbook writes the Summary, Generations and Genomes sheets to path
func (r *DefaultExcelReporter) WriteWorkbook(report RunReport, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	// Replace default sheet and create additional sheets
	if err := fx.SetSheetName(fx.GetSheetName(0), SummarySheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(GenerationsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(GenomesSheet); err != nil {
		return err
	}
	if len(report.Validation) > 0 {
		if _, err := fx.NewSheet(ValidationSheet); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, report, styles); err != nil {
		return err
	}
	if err := r.writeGenerationsSheet(fx, report, styles); err != nil {
		return err
	}
	if err := r.writeGenomesSheet(fx, report, styles); err != nil {
		return err
	}
	if len(report.Validation) > 0 {
		if err := r.writeValidationSheet(fx, report, styles); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thinBorder := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	if styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: thinBorder}); err != nil {
		return styles, err
	}

	// 0.0000
	decimals := "0.0000"
	if styles.DecimalStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &decimals,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       thinBorder,
	}); err != nil {
		return styles, err
	}

	if styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10, // 0.00%
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder,
	}); err != nil {
		return styles, err
	}

	if styles.GoodStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "008000", Bold: true},
		Border: thinBorder,
	}); err != nil {
		return styles, err
	}

	if styles.BadStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "FF0000"},
		Border: thinBorder,
	}); err != nil {
		return styles, err
	}

	if styles.LabelStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Border: thinBorder,
	}); err != nil {
		return styles, err
	}
	return styles, nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, report RunReport, styles ExcelStyles) error {
	run := report.Run
	cfg := run.ConfigSnapshot

	end := ""
	if run.EndTime != nil {
		end = run.EndTime.Format(time.RFC3339)
	}

	rows := [][]interface{}{
		{"Run ID", run.RunID},
		{"Outcome", outcomeOf(report)},
		{"Termination Reason", string(run.TerminationReason)},
		{"Error", run.Error},
		{"Start Time", run.StartTime.Format(time.RFC3339)},
		{"End Time", end},
		{"Generations Completed", run.GenerationsCompleted},
		{"Best Genome", run.BestGenomeID},
		{"Best Fitness", run.BestFitness},
		{"Population Size", cfg.PopulationSize},
		{"Elite Size", cfg.EliteSize},
		{"Max Generations", cfg.MaxGenerations},
		{"Convergence Generations", cfg.ConvergenceGenerations},
		{"Mutation Rate", run.MutationRate},
		{"Crossover Rate", run.CrossoverRate},
		{"Timeframe", cfg.Timeframe},
		{"Seed", cfg.Seed},
		{"Min Sharpe", cfg.Thresholds.MinSharpeRatio},
		{"Min Profit Factor", cfg.Thresholds.MinProfitFactor},
		{"Max Drawdown", cfg.Thresholds.MaxMDDThreshold},
	}

	fx.SetColWidth(SummarySheet, "A", "A", 26)
	fx.SetColWidth(SummarySheet, "B", "B", 42)
	for i, row := range rows {
		label, _ := excelize.CoordinatesToCellName(1, i+1)
		value, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := fx.SetSheetRow(SummarySheet, label, &row); err != nil {
			return err
		}
		fx.SetCellStyle(SummarySheet, label, label, styles.LabelStyle)
		fx.SetCellStyle(SummarySheet, value, value, styles.BaseStyle)
	}
	return nil
}

func (r *DefaultExcelReporter) writeGenerationsSheet(fx *excelize.File, report RunReport, styles ExcelStyles) error {
	headers := []string{"Generation", "Best", "Median", "Worst", "Evaluated", "Failed", "Best Genome", "Mutation", "Crossover", "Duration (s)"}
	if err := writeHeader(fx, GenerationsSheet, headers, styles); err != nil {
		return err
	}

	for i, s := range report.Run.GenerationStats {
		row := []interface{}{
			s.Generation, s.BestFitness, s.MedianFitness, s.WorstFitness,
			s.Evaluated, s.Failed, s.BestGenomeID, s.MutationRate, s.CrossoverRate,
			s.Duration.Seconds(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(GenerationsSheet, cell, &row); err != nil {
			return err
		}
		first, _ := excelize.CoordinatesToCellName(2, i+2)
		last, _ := excelize.CoordinatesToCellName(4, i+2)
		fx.SetCellStyle(GenerationsSheet, first, last, styles.DecimalStyle)
	}

	fx.SetColWidth(GenerationsSheet, "A", "F", 12)
	fx.SetColWidth(GenerationsSheet, "G", "G", 38)
	fx.SetColWidth(GenerationsSheet, "H", "J", 12)
	return fx.SetPanes(GenerationsSheet, frozenHeader())
}

func (r *DefaultExcelReporter) writeGenomesSheet(fx *excelize.File, report RunReport, styles ExcelStyles) error {
	headers := []string{"Rank", "Genome", "Generation", "Status", "Fitness", "Sharpe", "Profit Factor", "Max Drawdown", "Total Return", "Trades", "Meets Thresholds", "Indicators", "Error"}
	if err := writeHeader(fx, GenomesSheet, headers, styles); err != nil {
		return err
	}

	for i, g := range report.Genomes {
		rowNum := i + 2
		row := []interface{}{
			g.Rank, g.ID, g.Generation, g.Status, g.Fitness, g.SharpeRatio, g.ProfitFactor,
			g.MaxDrawdown, g.TotalReturn, g.NumTrades, g.MeetsThresholds, g.Indicators, g.Error,
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := fx.SetSheetRow(GenomesSheet, cell, &row); err != nil {
			return err
		}

		first, _ := excelize.CoordinatesToCellName(5, rowNum)
		last, _ := excelize.CoordinatesToCellName(7, rowNum)
		fx.SetCellStyle(GenomesSheet, first, last, styles.DecimalStyle)
		first, _ = excelize.CoordinatesToCellName(8, rowNum)
		last, _ = excelize.CoordinatesToCellName(9, rowNum)
		fx.SetCellStyle(GenomesSheet, first, last, styles.PercentStyle)

		passStyle := styles.BadStyle
		if g.MeetsThresholds {
			passStyle = styles.GoodStyle
		}
		pass, _ := excelize.CoordinatesToCellName(11, rowNum)
		fx.SetCellStyle(GenomesSheet, pass, pass, passStyle)
	}

	fx.SetColWidth(GenomesSheet, "A", "A", 6)
	fx.SetColWidth(GenomesSheet, "B", "B", 38)
	fx.SetColWidth(GenomesSheet, "C", "K", 14)
	fx.SetColWidth(GenomesSheet, "L", "L", 60)
	fx.SetColWidth(GenomesSheet, "M", "M", 40)
	return fx.SetPanes(GenomesSheet, frozenHeader())
}

// writeValidationSheet writes one row per fold of every validated genome
func (r *DefaultExcelReporter) writeValidationSheet(fx *excelize.File, report RunReport, styles ExcelStyles) error {
	headers := []string{"Genome", "Fold", "Test Start", "Test End", "Train Sharpe", "Test Sharpe", "Train Return", "Test Return", "Test Max Drawdown", "Risk", "Error"}
	if err := writeHeader(fx, ValidationSheet, headers, styles); err != nil {
		return err
	}

	rowNum := 2
	for _, summary := range report.Validation {
		for _, fold := range summary.Results {
			row := []interface{}{
				summary.GenomeID, fold.Fold,
				fold.TestStart.Format(time.RFC3339), fold.TestEnd.Format(time.RFC3339),
				nil, nil, nil, nil, nil,
				summary.OverfittingRisk, fold.Error,
			}
			if fold.Train != nil {
				row[4] = fold.Train.SharpeRatio
				row[6] = fold.Train.TotalReturn
			}
			if fold.Test != nil {
				row[5] = fold.Test.SharpeRatio
				row[7] = fold.Test.TotalReturn
				row[8] = fold.Test.MaxDrawdown
			}

			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := fx.SetSheetRow(ValidationSheet, cell, &row); err != nil {
				return err
			}
			first, _ := excelize.CoordinatesToCellName(5, rowNum)
			last, _ := excelize.CoordinatesToCellName(6, rowNum)
			fx.SetCellStyle(ValidationSheet, first, last, styles.DecimalStyle)
			first, _ = excelize.CoordinatesToCellName(7, rowNum)
			last, _ = excelize.CoordinatesToCellName(9, rowNum)
			fx.SetCellStyle(ValidationSheet, first, last, styles.PercentStyle)
			rowNum++
		}
	}

	fx.SetColWidth(ValidationSheet, "A", "A", 38)
	fx.SetColWidth(ValidationSheet, "B", "B", 6)
	fx.SetColWidth(ValidationSheet, "C", "D", 22)
	fx.SetColWidth(ValidationSheet, "E", "J", 14)
	fx.SetColWidth(ValidationSheet, "K", "K", 40)
	return fx.SetPanes(ValidationSheet, frozenHeader())
}

func writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}
	return nil
}

func frozenHeader() *excelize.Panes {
	return &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}
}

// WriteWorkbook is a convenience function using the default Excel reporter
func WriteWorkbook(report RunReport, path string) error {
	return NewDefaultExcelReporter().WriteWorkbook(report, path)
}
