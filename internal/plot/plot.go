// Package plot runs the chart-rendering step that follows sharding.
package plot

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/config"
	"github.com/signalnine/benchshard/internal/metrics"
)

type Plotter interface {
	Plot(ctx context.Context) error
}

// Error reports a failed plotting step. ExitCode is -1 when the plotter did
// not exit with a status of its own.
type Error struct {
	Mode     string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("plot (%s) exited with status %d: %v", e.Mode, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("plot (%s): %v", e.Mode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run invokes p synchronously and wraps any failure in *Error.
func Run(ctx context.Context, mode string, p Plotter) error {
	err := p.Plot(ctx)
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{Mode: mode, ExitCode: -1, Err: err}
}

// New builds the plotter selected by cfg.Plot.Mode for the given results root.
func New(cfg *config.Config, resultsDir string, out io.Writer, log *zap.Logger) (Plotter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := cfg.Plot
	switch p.Mode {
	case config.PlotModeNative:
		return &Native{
			ResultsDir:     resultsDir,
			OutDir:         OutputDir(p.OutDir, p.Experiment),
			Experiment:     p.Experiment,
			Filter:         metrics.Filter{Scenarios: p.Scenarios, Concurrencies: p.Concurrencies},
			LegendFormat:   p.LegendFormat,
			LogX:           p.LogX,
			OnlyP95:        p.OnlyP95,
			SkipIndividual: p.SkipIndividual,
			Out:            out,
			Logger:         log,
		}, nil
	case config.PlotModeExec:
		return &Command{
			Args:       p.Command,
			Dir:        p.WorkDir,
			ResultsDir: resultsDir,
			Timeout:    p.Timeout,
			Stdout:     out,
			Stderr:     out,
		}, nil
	case config.PlotModeDocker:
		workDir, err := filepath.Abs(p.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("resolving plot work dir: %w", err)
		}
		return &Container{
			Image:      p.Image,
			Args:       p.Command,
			WorkDir:    workDir,
			ResultsDir: resultsDir,
			Timeout:    p.Timeout,
			Logs:       out,
		}, nil
	default:
		return nil, fmt.Errorf("unknown plot mode %q", p.Mode)
	}
}
