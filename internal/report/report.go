package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/benchshard/internal/metrics"
)

type GroupSummary struct {
	Name           string   `json:"name"`
	Files          int      `json:"files"`
	Scenarios      []string `json:"scenarios"`
	MinConcurrency int      `json:"min_concurrency"`
	MaxConcurrency int      `json:"max_concurrency"`
	MeanRPS        float64  `json:"mean_requests_per_second"`
	MaxTTFTP95     float64  `json:"max_ttft_p95_s"`
	MeanErrorRate  float64  `json:"mean_error_rate"`
}

// Generate summarises every group folder under resultsDir.
func Generate(resultsDir, format string, w io.Writer) error {
	summaries, err := Collect(resultsDir)
	if err != nil {
		return err
	}
	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

// Collect builds one summary per group folder, sorted by name.
func Collect(resultsDir string) ([]GroupSummary, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("reading results dir: %w", err)
	}
	var summaries []GroupSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(resultsDir, e.Name())
		files, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, err
		}
		rows, err := metrics.LoadPlatform(dir, e.Name())
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, aggregate(e.Name(), len(files), rows))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func aggregate(name string, files int, rows []metrics.Row) GroupSummary {
	type accum struct {
		sum   float64
		count int
	}
	var rps, errRate accum
	s := GroupSummary{Name: name, Files: files, MinConcurrency: math.MaxInt}
	scenarios := map[string]bool{}

	for _, r := range rows {
		if r.Scenario != "" {
			scenarios[r.Scenario] = true
		}
		s.MinConcurrency = min(s.MinConcurrency, r.Concurrency)
		s.MaxConcurrency = max(s.MaxConcurrency, r.Concurrency)
		switch {
		case r.Metric == "requests_per_second" && r.Stat == "mean":
			rps.sum += r.Value
			rps.count++
		case r.Metric == "ttft" && r.Stat == "p95":
			s.MaxTTFTP95 = max(s.MaxTTFTP95, r.Value)
		case r.Metric == "error_rate":
			errRate.sum += r.Value
			errRate.count++
		}
	}
	if len(rows) == 0 {
		s.MinConcurrency = 0
	}
	if rps.count > 0 {
		s.MeanRPS = rps.sum / float64(rps.count)
	}
	if errRate.count > 0 {
		s.MeanErrorRate = errRate.sum / float64(errRate.count)
	}
	for sc := range scenarios {
		s.Scenarios = append(s.Scenarios, sc)
	}
	sort.Strings(s.Scenarios)
	return s
}

func concurrencyRange(s GroupSummary) string {
	if s.MinConcurrency == s.MaxConcurrency {
		return fmt.Sprint(s.MinConcurrency)
	}
	return fmt.Sprintf("%d-%d", s.MinConcurrency, s.MaxConcurrency)
}

func writeTable(summaries []GroupSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tFILES\tSCENARIOS\tCONCURRENCY\tMEAN RPS\tMAX TTFT P95\tMEAN ERR RATE")
	fmt.Fprintln(tw, strings.Repeat("-", 96))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%.3fs\t%.1f%%\n",
			s.Name, s.Files, strings.Join(s.Scenarios, " "), concurrencyRange(s), s.MeanRPS, s.MaxTTFTP95, s.MeanErrorRate*100)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []GroupSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Group | Files | Scenarios | Concurrency | Mean RPS | Max TTFT p95 | Mean Error Rate |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %s | %s | %.2f | %.3fs | %.1f%% |\n",
			s.Name, s.Files, strings.Join(s.Scenarios, " "), concurrencyRange(s), s.MeanRPS, s.MaxTTFTP95, s.MeanErrorRate*100)
	}
	return nil
}

func writeJSON(summaries []GroupSummary, w io.Writer) error {
	if summaries == nil {
		summaries = []GroupSummary{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
