// Package metrics turns a sharded results tree into a long table of
// (platform, scenario, metric, stat, concurrency, value) rows.
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ErrNoData is returned when a results tree yields no numeric rows.
var ErrNoData = errors.New("no numeric metrics found")

type Row struct {
	Platform    string  `json:"platform_label"`
	Scenario    string  `json:"scenario"`
	Metric      string  `json:"metric_base"`
	Stat        string  `json:"stat"`
	Concurrency int     `json:"concurrency"`
	Value       float64 `json:"value"`
	Label       string  `json:"label,omitempty"`
}

// Scalar aggregated metrics reported with stat "mean".
var aggregatedMeans = []string{
	"mean_output_throughput_tokens_per_s",
	"mean_input_throughput_tokens_per_s",
	"mean_total_tokens_throughput_tokens_per_s",
	"mean_total_chars_per_hour",
	"requests_per_second",
}

// Scalar aggregated metrics reported with stat "value".
var aggregatedValues = []string{"error_rate", "num_completed_requests"}

// OverviewMetrics are the eight panels of the overview chart, in order.
var OverviewMetrics = []string{
	"e2e_latency",
	"ttft",
	"tpot",
	"requests_per_second",
	"output_latency",
	"output_inference_speed",
	"mean_total_tokens_throughput_tokens_per_s",
	"mean_output_throughput_tokens_per_s",
}

var concurrencyInName = regexp.MustCompile(`_concurrency_(\d+)_`)

type Filter struct {
	Scenarios     []string
	Concurrencies []int
}

func (f Filter) keep(r Row) bool {
	if len(f.Scenarios) > 0 && !slices.Contains(f.Scenarios, r.Scenario) {
		return false
	}
	if len(f.Concurrencies) > 0 && !slices.Contains(f.Concurrencies, r.Concurrency) {
		return false
	}
	return true
}

type resultFile struct {
	Aggregated map[string]json.RawMessage `json:"aggregated_metrics"`
}

// LoadRoot reads every group folder under root. Files that are not valid JSON are skipped.
func LoadRoot(root string, f Filter) ([]Row, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading results root: %w", err)
	}
	var rows []Row
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		platformRows, err := LoadPlatform(filepath.Join(root, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		for _, r := range platformRows {
			if f.keep(r) {
				rows = append(rows, r)
			}
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoData)
	}
	SortRows(rows)
	return rows, nil
}

// LoadPlatform parses the *.json files of one group folder.
func LoadPlatform(dir, label string) ([]Row, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var rows []Row
	for _, path := range files {
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		fileRows, ok := ParseResult(data, filepath.Base(path), label)
		if !ok {
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// ParseResult extracts rows from one genai-bench result file. ok is false when
// the payload is not a JSON object.
func ParseResult(data []byte, fileName, label string) ([]Row, bool) {
	var rf resultFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, false
	}
	agg := rf.Aggregated
	scenario := stringField(agg["scenario"])
	concurrency, hasConc := intField(agg["num_concurrency"])
	if !hasConc {
		if m := concurrencyInName.FindStringSubmatch(fileName); m != nil {
			concurrency, _ = strconv.Atoi(m[1])
		}
	}
	base := Row{Platform: label, Scenario: scenario, Concurrency: concurrency}

	var rows []Row
	var stats map[string]map[string]json.RawMessage
	if raw, ok := agg["stats"]; ok {
		_ = json.Unmarshal(raw, &stats)
	}
	for _, metric := range sortedKeys(stats) {
		for _, stat := range sortedKeys(stats[metric]) {
			v, ok := toFloat(stats[metric][stat])
			if !ok {
				continue
			}
			r := base
			r.Metric, r.Stat, r.Value = metric, strings.ToLower(stat), v
			rows = append(rows, r)
		}
	}
	for _, metric := range aggregatedMeans {
		if v, ok := toFloat(agg[metric]); ok {
			r := base
			r.Metric, r.Stat, r.Value = metric, "mean", v
			rows = append(rows, r)
		}
	}
	for _, metric := range aggregatedValues {
		if v, ok := toFloat(agg[metric]); ok {
			r := base
			r.Metric, r.Stat, r.Value = metric, "value", v
			rows = append(rows, r)
		}
	}
	return rows, true
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func intField(raw json.RawMessage) (int, bool) {
	v, ok := toFloat(raw)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SortRows orders rows by metric, stat, platform, scenario, concurrency.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		if a.Stat != b.Stat {
			return a.Stat < b.Stat
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Scenario != b.Scenario {
			return a.Scenario < b.Scenario
		}
		return a.Concurrency < b.Concurrency
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
