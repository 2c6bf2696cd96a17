package docker_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/benchshard/internal/docker"
)

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("BENCHSHARD_DOCKER_TESTS") == "" {
		t.Skip("set BENCHSHARD_DOCKER_TESTS=1 to run Docker tests")
	}
}

func TestRunContainer(t *testing.T) {
	skipWithoutDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	workDir := t.TempDir()
	os.MkdirAll(filepath.Join(workDir, "results"), 0o755)

	var logs bytes.Buffer
	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "ls -d results && echo plotted > figures.txt"},
		WorkDir: workDir,
		Env:     map[string]string{"BENCHSHARD_RESULTS_DIR": "results"},
		Timeout: 30 * time.Second,
		Logs:    &logs,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", result.ExitCode)
	}
	if result.TimedOut {
		t.Error("unexpected timeout")
	}
	content, err := os.ReadFile(filepath.Join(workDir, "figures.txt"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(content) != "plotted\n" {
		t.Errorf("output: got %q, want %q", content, "plotted\n")
	}
	if logs.String() != "results\n" {
		t.Errorf("container logs: got %q, want %q", logs.String(), "results\n")
	}
}

func TestRunContainerTimeout(t *testing.T) {
	skipWithoutDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		WorkDir: t.TempDir(),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != docker.TimeoutExitCode {
		t.Errorf("exit code: got %d, want %d", result.ExitCode, docker.TimeoutExitCode)
	}
}

func TestRunContainerCrash(t *testing.T) {
	skipWithoutDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 1"},
		WorkDir: t.TempDir(),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", result.ExitCode)
	}
}
