package plot_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/benchshard/internal/config"
	"github.com/signalnine/benchshard/internal/metrics"
	"github.com/signalnine/benchshard/internal/plot"
)

func writeResult(t *testing.T, root, group string, concurrency int, rps, ttft float64) {
	t.Helper()
	dir := filepath.Join(root, group)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := []byte(`{"aggregated_metrics": {
  "scenario": "D(100,100)",
  "num_concurrency": ` + itoa(concurrency) + `,
  "requests_per_second": ` + ftoa(rps) + `,
  "stats": {"ttft": {"mean": ` + ftoa(ttft/2) + `, "p95": ` + ftoa(ttft) + `}}
}}`)
	name := "N1_concurrency_" + itoa(concurrency) + "_time_60s.json"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0o644))
}

func itoa(n int) string     { return strconv.Itoa(n) }
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) }

func TestNativePlot(t *testing.T) {
	results := t.TempDir()
	for _, c := range []int{1, 2, 4, 8} {
		writeResult(t, results, "oci-genai_D100,100", c, float64(c)*0.9, 0.2+float64(c)*0.01)
		writeResult(t, results, "vllm_D100,100", c, float64(c)*1.1, 0.3+float64(c)*0.02)
	}
	outDir := filepath.Join(t.TempDir(), "figures")

	var out bytes.Buffer
	n := &plot.Native{ResultsDir: results, OutDir: outDir, LogX: true, Out: &out}
	require.NoError(t, plot.Run(context.Background(), config.PlotModeNative, n))

	assert.FileExists(t, filepath.Join(outDir, plot.CSVFile))
	assert.FileExists(t, filepath.Join(outDir, plot.OverviewFile))
	assert.FileExists(t, filepath.Join(outDir, "ttft_p95.png"))
	assert.FileExists(t, filepath.Join(outDir, "requests_per_second_mean.png"))
	assert.Contains(t, out.String(), "[OK] CSV")

	csv, err := os.ReadFile(filepath.Join(outDir, plot.CSVFile))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "oci-genai_D100,100-D(100,100)")
	assert.NotContains(t, string(csv), "ttft,mean", "ttft p95 wins over mean")
}

func TestNativePlotSkipIndividual(t *testing.T) {
	results := t.TempDir()
	writeResult(t, results, "vllm_D100,100", 1, 1, 0.2)
	outDir := t.TempDir()

	n := &plot.Native{ResultsDir: results, OutDir: outDir, SkipIndividual: true}
	require.NoError(t, n.Plot(context.Background()))
	assert.FileExists(t, filepath.Join(outDir, plot.OverviewFile))
	assert.NoFileExists(t, filepath.Join(outDir, "ttft_p95.png"))
}

func TestNativePlotNoData(t *testing.T) {
	n := &plot.Native{ResultsDir: t.TempDir(), OutDir: t.TempDir()}
	err := plot.Run(context.Background(), config.PlotModeNative, n)

	var pe *plot.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, -1, pe.ExitCode)
	assert.True(t, errors.Is(err, metrics.ErrNoData))
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, "figures_multi", plot.OutputDir("figures_multi", ""))
	assert.Equal(t, filepath.Join("figures", "Llama 3_3 70B"), plot.OutputDir("ignored", "Llama 3.3 70B"))
	assert.Equal(t, filepath.Join("figures", "Scout_v2_"), plot.OutputDir("ignored", " Scout/v2! "))
}

func TestCommandPlot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	c := &plot.Command{
		Args:       []string{"sh", "-c", `echo "$BENCHSHARD_RESULTS_DIR" > seen.txt`},
		Dir:        dir,
		ResultsDir: "results",
		Timeout:    10 * time.Second,
	}
	require.NoError(t, plot.Run(context.Background(), config.PlotModeExec, c))
	data, err := os.ReadFile(filepath.Join(dir, "seen.txt"))
	require.NoError(t, err)
	assert.Equal(t, "results\n", string(data))
}

func TestCommandPlotFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	c := &plot.Command{Args: []string{"sh", "-c", "exit 3"}, Dir: t.TempDir()}
	err := plot.Run(context.Background(), config.PlotModeExec, c)

	var pe *plot.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.ExitCode)
	assert.Equal(t, "exec", pe.Mode)
}

func TestCommandPlotMissingBinary(t *testing.T) {
	c := &plot.Command{Args: []string{"benchshard-no-such-plotter"}, Dir: t.TempDir()}
	err := c.Plot(context.Background())

	var pe *plot.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, -1, pe.ExitCode)
}

func TestNewSelectsMode(t *testing.T) {
	cfg := config.Default()

	p, err := plot.New(cfg, "results", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &plot.Native{}, p)

	cfg.Plot.Mode = config.PlotModeExec
	p, err = plot.New(cfg, "results", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &plot.Command{}, p)

	cfg.Plot.Mode = config.PlotModeDocker
	p, err = plot.New(cfg, "results", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &plot.Container{}, p)

	cfg.Plot.Mode = "bogus"
	_, err = plot.New(cfg, "results", nil, nil)
	assert.Error(t, err)
}

func TestContainerRejectsResultsOutsideWorkDir(t *testing.T) {
	c := &plot.Container{Image: "python:3.12-slim", Args: []string{"python3", "plot.py"}, WorkDir: t.TempDir(), ResultsDir: t.TempDir()}
	err := c.Plot(context.Background())

	var pe *plot.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "docker", pe.Mode)
}
