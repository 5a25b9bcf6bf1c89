package reporting

import (
	"encoding/csv"
	"os"
	"strconv"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteGenerationsCSV writes one row per generation
func (r *DefaultCSVReporter) WriteGenerationsCSV(report RunReport, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"Generation",
		"Best_Fitness",
		"Median_Fitness",
		"Worst_Fitness",
		"Evaluated",
		"Failed",
		"Best_Genome",
		"Mutation_Rate",
		"Crossover_Rate",
		"Duration_s",
	}); err != nil {
		return err
	}

	for _, s := range report.Run.GenerationStats {
		row := []string{
			strconv.Itoa(s.Generation),
			formatFloat(s.BestFitness),
			formatFloat(s.MedianFitness),
			formatFloat(s.WorstFitness),
			strconv.Itoa(s.Evaluated),
			strconv.Itoa(s.Failed),
			s.BestGenomeID,
			formatFloat(s.MutationRate),
			formatFloat(s.CrossoverRate),
			formatFloat(s.Duration.Seconds()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteGenerationsCSV is a convenience function using the default CSV reporter
func WriteGenerationsCSV(report RunReport, path string) error {
	return NewDefaultCSVReporter().WriteGenerationsCSV(report, path)
}
