package plot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ResultsDirEnv tells an external plotter where the sharded tree lives.
const ResultsDirEnv = "BENCHSHARD_RESULTS_DIR"

// Command runs an external plotting interpreter, e.g. python3 plot.py.
type Command struct {
	Args       []string
	Dir        string
	ResultsDir string
	Timeout    time.Duration
	Stdout     io.Writer
	Stderr     io.Writer
}

func (c *Command) Plot(ctx context.Context) error {
	if len(c.Args) == 0 {
		return &Error{Mode: "exec", ExitCode: -1, Err: errors.New("no plot command configured")}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Env = append(os.Environ(), ResultsDirEnv+"="+c.ResultsDir)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Error{Mode: "exec", ExitCode: exitErr.ExitCode(), Err: fmt.Errorf("%s: %w", c.Args[0], err)}
	}
	return &Error{Mode: "exec", ExitCode: -1, Err: fmt.Errorf("running %s: %w", c.Args[0], err)}
}
