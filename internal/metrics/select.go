package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

var preferredStats = []string{"p95", "mean", "value"}

var prettyTitles = map[string]string{
	"ttft":                                      "Time To First Token (TTFT) [s]",
	"e2e_latency":                               "End-to-end latency (s)",
	"output_throughput":                         "Output throughput (tokens/s)",
	"output_inference_speed":                    "Output inference speed (tokens/s)",
	"num_completed_requests":                    "Completed requests",
	"error_rate":                                "Error rate",
	"num_input_tokens":                          "Input tokens",
	"num_output_tokens":                         "Output tokens",
	"total_tokens":                              "Total tokens",
	"input_throughput":                          "Input throughput (tokens/s)",
	"output_latency":                            "Output Latency (s)",
	"mean_output_throughput_tokens_per_s":       "Mean Output Throughput (tokens/s)",
	"mean_input_throughput_tokens_per_s":        "Mean Input Throughput (tokens/s)",
	"mean_total_tokens_throughput_tokens_per_s": "Mean Total Tokens Throughput (tokens/s)",
	"mean_total_chars_per_hour":                 "Mean Total Chars per Hour",
	"requests_per_second":                       "Requests per Second",
	"tpot":                                      "Time Per Output Token (TPOT) [s]",
}

// PrettyTitle returns the axis title for a metric, or the metric name itself.
func PrettyTitle(metric string) string {
	if t, ok := prettyTitles[metric]; ok {
		return t
	}
	return metric
}

// StatLabel is the display form of a stat name.
func StatLabel(stat string) string {
	switch stat {
	case "p95":
		return "P95"
	case "mean":
		return "Mean"
	default:
		return stat
	}
}

// ChooseStat picks the stat to chart for one metric given the stats present.
func ChooseStat(available []string, onlyP95 bool) string {
	set := map[string]bool{}
	for _, s := range available {
		set[s] = true
	}
	if onlyP95 {
		if set["p95"] {
			return "p95"
		}
	} else {
		for _, pref := range preferredStats {
			if set[pref] {
				return pref
			}
		}
	}
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}

// SelectStats keeps, for every metric, only the rows of its chosen stat.
func SelectStats(rows []Row, onlyP95 bool) []Row {
	statsByMetric := map[string][]string{}
	seen := map[[2]string]bool{}
	for _, r := range rows {
		k := [2]string{r.Metric, r.Stat}
		if !seen[k] {
			seen[k] = true
			statsByMetric[r.Metric] = append(statsByMetric[r.Metric], r.Stat)
		}
	}
	chosen := map[string]string{}
	for metric, stats := range statsByMetric {
		chosen[metric] = ChooseStat(stats, onlyP95)
	}
	var out []Row
	for _, r := range rows {
		if chosen[r.Metric] == r.Stat {
			out = append(out, r)
		}
	}
	return out
}

// ApplyLabels fills Label from a template using {platform} and {scenario}.
func ApplyLabels(rows []Row, format string) {
	for i := range rows {
		rows[i].Label = Label(rows[i], format)
	}
}

func Label(r Row, format string) string {
	return strings.NewReplacer("{platform}", r.Platform, "{scenario}", r.Scenario).Replace(format)
}

// HumanFormat renders a value compactly for chart annotations.
func HumanFormat(x float64) string {
	abs := math.Abs(x)
	switch {
	case x == 0:
		return "0"
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", x/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.2fk", x/1_000)
	case abs >= 100:
		return fmt.Sprintf("%.0f", x)
	case abs >= 10:
		return fmt.Sprintf("%.1f", x)
	default:
		return fmt.Sprintf("%.2f", x)
	}
}

var csvHeader = []string{"platform_label", "scenario", "metric_base", "stat", "concurrency", "value", "label"}

// WriteCSV writes rows sorted by metric, platform, scenario and concurrency.
func WriteCSV(w io.Writer, rows []Row) error {
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Scenario != b.Scenario {
			return a.Scenario < b.Scenario
		}
		return a.Concurrency < b.Concurrency
	})
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range sorted {
		rec := []string{
			r.Platform,
			r.Scenario,
			r.Metric,
			r.Stat,
			strconv.Itoa(r.Concurrency),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.Label,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
