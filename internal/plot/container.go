package plot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalnine/benchshard/internal/docker"
)

// Container runs the plot command inside an image with WorkDir mounted as
// the container's working directory.
type Container struct {
	Image      string
	Args       []string
	WorkDir    string
	ResultsDir string
	Timeout    time.Duration
	Logs       io.Writer
}

func (c *Container) Plot(ctx context.Context) error {
	resultsInContainer, err := containerPath(c.WorkDir, c.ResultsDir)
	if err != nil {
		return &Error{Mode: "docker", ExitCode: -1, Err: err}
	}
	res, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   c.Image,
		Command: c.Args,
		WorkDir: c.WorkDir,
		Env:     map[string]string{ResultsDirEnv: resultsInContainer},
		Timeout: c.Timeout,
		UserID:  fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Logs:    c.Logs,
	})
	if err != nil {
		return &Error{Mode: "docker", ExitCode: -1, Err: err}
	}
	if res.TimedOut {
		return &Error{Mode: "docker", ExitCode: res.ExitCode, Err: fmt.Errorf("timed out after %s", c.Timeout)}
	}
	if res.ExitCode != 0 {
		return &Error{Mode: "docker", ExitCode: res.ExitCode, Err: fmt.Errorf("%s in %s", strings.Join(c.Args, " "), c.Image)}
	}
	return nil
}

// containerPath maps a host results dir to its path under the mounted workspace.
func containerPath(workDir, resultsDir string) (string, error) {
	abs, err := filepath.Abs(resultsDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(workDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("results dir %s is outside plot work dir %s", resultsDir, workDir)
	}
	return path.Join(docker.WorkspaceTarget, filepath.ToSlash(rel)), nil
}
