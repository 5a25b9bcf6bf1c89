package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// Format encodes the report as indented JSON
func (f *DefaultJSONFormatter) Format(report RunReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// Print writes the report as JSON to out
func (f *DefaultJSONFormatter) Print(report RunReport, out io.Writer) error {
	data, err := f.Format(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// WriteJSON writes the report to a JSON file
func (f *DefaultJSONFormatter) WriteJSON(report RunReport, path string) error {
	data, err := f.Format(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadJSON loads a report written by WriteJSON
func ReadJSON(path string) (RunReport, error) {
	var report RunReport
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return report, nil
}

// WriteJSON is a convenience function using the default formatter
func WriteJSON(report RunReport, path string) error {
	return NewDefaultJSONFormatter().WriteJSON(report, path)
}
