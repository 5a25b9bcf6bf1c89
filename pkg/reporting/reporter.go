package reporting

import (
	"io"
	"os"
	"path/filepath"
)

// DefaultReporter implements every console and file output
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
}

// NewDefaultReporter creates a new default reporter writing console output to out
func NewDefaultReporter(out io.Writer) *DefaultReporter {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultReporter{
		console: NewConsoleReporter(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
	}
}

// Console output methods
func (r *DefaultReporter) PrintSummary(report RunReport) {
	r.console.PrintSummary(report)
}

func (r *DefaultReporter) PrintGenerations(report RunReport) {
	r.console.PrintGenerations(report)
}

func (r *DefaultReporter) PrintTopGenomes(report RunReport) {
	r.console.PrintTopGenomes(report)
}

func (r *DefaultReporter) PrintValidation(report RunReport) {
	r.console.PrintValidation(report)
}

// File output methods
func (r *DefaultReporter) WriteWorkbook(report RunReport, path string) error {
	return r.excel.WriteWorkbook(report, path)
}

func (r *DefaultReporter) WriteGenerationsCSV(report RunReport, path string) error {
	return r.csv.WriteGenerationsCSV(report, path)
}

func (r *DefaultReporter) WriteJSON(report RunReport, path string) error {
	return r.json.WriteJSON(report, path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(out),
		config:   config,
	}
}

// Report outputs a run according to configuration and returns the files written
func (m *ReportingManager) Report(report RunReport) ([]string, error) {
	if m.config.EnableConsole {
		m.reporter.PrintSummary(report)
		if len(report.Run.GenerationStats) > 0 {
			m.reporter.PrintGenerations(report)
		}
		if len(report.Genomes) > 0 {
			m.reporter.PrintTopGenomes(report)
		}
		if len(report.Validation) > 0 {
			m.reporter.PrintValidation(report)
		}
	}

	outputDir := m.config.OutputDirectory
	if outputDir == "" {
		outputDir = DefaultOutputDir(report.Run.RunID)
	}

	var written []string
	if m.config.ExcelEnabled {
		path := filepath.Join(outputDir, "evolution.xlsx")
		if err := m.reporter.WriteWorkbook(report, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.CSVEnabled {
		path := filepath.Join(outputDir, "generations.csv")
		if err := m.reporter.WriteGenerationsCSV(report, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(outputDir, "run.json")
		if err := m.reporter.WriteJSON(report, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
