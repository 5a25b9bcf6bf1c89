package reporting

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputDir returns results/<run id prefix>, or results/unknown for an empty id
func DefaultOutputDir(runID string) string {
	id := strings.TrimSpace(runID)
	if id == "" {
		id = "unknown"
	}
	return filepath.Join("results", "run_"+shortID(id))
}

// EnsureDirectoryExists creates the parent directory of path if it doesn't exist
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
