package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SummaryFile is written at the top of the results root, beside the group folders.
const SummaryFile = "shard-summary.json"

func GroupDir(resultsDir, key string) string {
	return filepath.Join(resultsDir, key)
}

// EnsureGroupDir creates the destination folder for key if it is missing.
func EnsureGroupDir(resultsDir, key string) (string, error) {
	dir := GroupDir(resultsDir, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating group dir %s: %w", dir, err)
	}
	return dir, nil
}

func WriteSummary(resultsDir string, s *Summary) error {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(filepath.Join(resultsDir, SummaryFile), data, 0o644)
}

func ReadSummary(resultsDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(resultsDir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}
