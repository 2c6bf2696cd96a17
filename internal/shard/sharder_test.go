package shard_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/signalnine/benchshard/internal/shard"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func writeRun(t *testing.T, dir, backend, scenario string, results ...string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "experiment_metadata.json"),
		`{"api_backend": "`+backend+`", "traffic_scenario": ["`+scenario+`"]}`)
	for _, name := range results {
		writeFile(t, filepath.Join(dir, name), `{"run": "`+dir+`", "file": "`+name+`"}`)
	}
}

// snapshot maps every file under root to its contents.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			files[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func newSharder(src, dst string, skipInvalid bool) *shard.Sharder {
	return shard.New(shard.Options{SourceDir: src, ResultsDir: dst, SkipInvalid: skipInvalid})
}

func TestRunShardsByBackendAndScenario(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "results")

	writeRun(t, filepath.Join(src, "openai_llama_20250301"), "oci-genai", "N(480,240)/(300,150)",
		"N1_concurrency_1_time_60s.json", "N2_concurrency_2_time_60s.json", "report.xlsx", "other.json")
	writeRun(t, filepath.Join(src, "nested", "vllm_run"), "vllm", "D(100,100)",
		"N4_concurrency_4_time_60s.json")
	writeFile(t, filepath.Join(src, "no_meta", "N9_concurrency_9.json"), "{}")

	var out bytes.Buffer
	s := shard.New(shard.Options{SourceDir: src, ResultsDir: dst, Out: &out})
	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.DirsSharded)
	assert.Equal(t, 3, summary.FilesCopied)
	assert.Empty(t, summary.Warnings)
	assert.ElementsMatch(t, []string{"N1_concurrency_1_time_60s.json", "N2_concurrency_2_time_60s.json"},
		summary.Groups["oci-genai_N480,240300,150"])

	assert.FileExists(t, filepath.Join(dst, "oci-genai_N480,240300,150", "N1_concurrency_1_time_60s.json"))
	assert.FileExists(t, filepath.Join(dst, "vllm_D100,100", "N4_concurrency_4_time_60s.json"))
	assert.NoFileExists(t, filepath.Join(dst, "oci-genai_N480,240300,150", "report.xlsx"))
	assert.NoFileExists(t, filepath.Join(dst, "oci-genai_N480,240300,150", "other.json"))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "directories without metadata contribute nothing")
	assert.Contains(t, out.String(), "Processing")
}

func TestRunIsIdempotent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeRun(t, filepath.Join(src, "a"), "oci-genai", "N(5000,0)/(25,0)", "N1_a.json", "N2_a.json")
	writeRun(t, filepath.Join(src, "b"), "vllm", "D(100,100)", "N1_b.json")

	_, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	first := snapshot(t, dst)

	_, err = newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	second := snapshot(t, dst)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results tree changed on second run (-first +second):\n%s", diff)
	}
}

func TestRunMergesRunsWithSameKey(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeRun(t, filepath.Join(src, "run1"), "oci-genai", "D(100,100)", "N1_concurrency_1.json")
	writeRun(t, filepath.Join(src, "run2"), "oci-genai", "D (100,100)", "N8_concurrency_8.json")

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Groups, 1)

	group := filepath.Join(dst, "oci-genai_D100,100")
	assert.FileExists(t, filepath.Join(group, "N1_concurrency_1.json"))
	assert.FileExists(t, filepath.Join(group, "N8_concurrency_8.json"))
}

func TestRunLaterRunOverwritesSameFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeRun(t, filepath.Join(src, "run1"), "vllm", "D(100,100)", "N1.json")
	writeRun(t, filepath.Join(src, "run2"), "vllm", "D(100,100)", "N1.json")

	core, logs := observer.New(zapcore.WarnLevel)
	s := shard.New(shard.Options{SourceDir: src, ResultsDir: dst, Logger: zap.New(core)})
	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"N1.json"}, summary.Groups["vllm_D100,100"])
	assert.Equal(t, 2, summary.FilesCopied)
	assert.Empty(t, summary.Warnings)

	data, err := os.ReadFile(filepath.Join(dst, "vllm_D100,100", "N1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), filepath.Join(src, "run2"))

	overwrites := logs.FilterMessage("result file overwritten by another run").All()
	require.Len(t, overwrites, 1)
	fields := overwrites[0].ContextMap()
	assert.Equal(t, filepath.Join(src, "run1"), fields["previous"])
	assert.Equal(t, filepath.Join(src, "run2"), fields["current"])
}

func TestRunKeyIgnoresInformationalFields(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want string
	}{
		{
			name: "model is an object",
			meta: `{"api_backend": "vllm", "traffic_scenario": ["D(100,100)"], "model": {"name": "llama"}}`,
			want: "vllm_D100,100",
		},
		{
			name: "num_concurrency is a string",
			meta: `{"api_backend": "vllm", "traffic_scenario": ["D(100,100)"], "num_concurrency": "1,2,4"}`,
			want: "vllm_D100,100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := t.TempDir()
			dst := t.TempDir()
			writeFile(t, filepath.Join(src, "run", "experiment_metadata.json"), tt.meta)
			writeFile(t, filepath.Join(src, "run", "N1.json"), "{}")

			summary, err := newSharder(src, dst, false).Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, summary.Warnings)
			assert.FileExists(t, filepath.Join(dst, tt.want, "N1.json"))
			assert.NoDirExists(t, filepath.Join(dst, "_"))
		})
	}
}

func TestRunKeepsBackendWhenScenarioIsNotAnArray(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "run", "experiment_metadata.json"),
		`{"api_backend": "vllm", "traffic_scenario": "D(100,100)"}`)
	writeFile(t, filepath.Join(src, "run", "N1.json"), "{}")

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, "vllm_", summary.Warnings[0].Key)
	assert.FileExists(t, filepath.Join(dst, "vllm_", "N1.json"))
}

func TestRunEmptyFieldsRenderEmpty(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "run", "experiment_metadata.json"),
		`{"api_backend": "", "traffic_scenario": ["D(100,100)"]}`)
	writeFile(t, filepath.Join(src, "run", "N1.json"), "{}")

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0].Reason, "empty api_backend")
	assert.FileExists(t, filepath.Join(dst, "_D100,100", "N1.json"))
}

func TestRunEmptyRunCreatesGroup(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeRun(t, filepath.Join(src, "empty"), "oci-genai", "D(100,100)")

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesCopied)
	assert.DirExists(t, filepath.Join(dst, "oci-genai_D100,100"))
}

func TestRunReportsDegenerateKeys(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "broken", "experiment_metadata.json"), `{"api_backend": `)
	writeFile(t, filepath.Join(src, "broken", "N1_x.json"), "{}")
	writeFile(t, filepath.Join(src, "partial", "experiment_metadata.json"), `{"api_backend": "vllm"}`)
	writeFile(t, filepath.Join(src, "partial", "N1_y.json"), "{}")

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 2)
	assert.FileExists(t, filepath.Join(dst, "_", "N1_x.json"))
	assert.FileExists(t, filepath.Join(dst, "vllm_null", "N1_y.json"))
}

func TestRunSkipInvalid(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "partial", "experiment_metadata.json"), `{"traffic_scenario": []}`)
	writeFile(t, filepath.Join(src, "partial", "N1_y.json"), "{}")
	writeRun(t, filepath.Join(src, "good"), "vllm", "D(1,1)", "N1_z.json")

	summary, err := newSharder(src, dst, true).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Warnings, 1)
	assert.Len(t, summary.SkippedDirs, 1)
	assert.NoDirExists(t, filepath.Join(dst, "null_null"))
	assert.FileExists(t, filepath.Join(dst, "vllm_D1,1", "N1_z.json"))
}

func TestRunSkipsResultsInsideSource(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(src, "results")
	writeRun(t, filepath.Join(src, "run"), "vllm", "D(1,1)", "N1.json")

	_, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	// a stray metadata file inside the results root must not be re-sharded
	writeFile(t, filepath.Join(dst, "vllm_D1,1", "experiment_metadata.json"), `{"api_backend": "x", "traffic_scenario": ["y"]}`)

	summary, err := newSharder(src, dst, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DirsSharded)
	assert.NoDirExists(t, filepath.Join(dst, "x_y"))
}

func TestRunMissingSource(t *testing.T) {
	_, err := newSharder(filepath.Join(t.TempDir(), "missing"), t.TempDir(), false).Run(context.Background())
	require.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	src := t.TempDir()
	writeRun(t, filepath.Join(src, "run"), "vllm", "D(1,1)", "N1.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSharder(src, t.TempDir(), false).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
