// Package docker runs one-shot containers against a bind-mounted workspace.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// WorkspaceTarget is where RunOpts.WorkDir is mounted inside the container.
const WorkspaceTarget = "/workspace"

// TimeoutExitCode is reported when the container outlives RunOpts.Timeout.
const TimeoutExitCode = 124

type RunOpts struct {
	Image   string
	Command []string
	WorkDir string
	Env     map[string]string
	Timeout time.Duration
	UserID  string
	// Logs receives the container's stdout and stderr once it exits.
	Logs io.Writer
}

type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

func RunContainer(ctx context.Context, opts *RunOpts) (*RunResult, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: opts.WorkDir,
				Target: WorkspaceTarget,
			},
		},
		Init: &initTrue,
	}
	containerCfg := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Command,
		Env:        envSlice,
		WorkingDir: WorkspaceTarget,
		Labels:     map[string]string{"benchshard": "true"},
	}
	if opts.UserID != "" {
		containerCfg.User = opts.UserID
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				copyLogs(cli, containerID, opts.Logs, "")
				return &RunResult{
					ExitCode: TimeoutExitCode,
					TimedOut: true,
					Duration: time.Since(start),
				}, nil
			}
		case status := <-waitResult.Result:
			copyLogs(cli, containerID, opts.Logs, "200")
			return &RunResult{
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
			}, nil
		}
	}
}

func copyLogs(cli *client.Client, containerID string, w io.Writer, tail string) {
	if w == nil {
		return
	}
	logReader, _ := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if logReader == nil {
		return
	}
	defer logReader.Close()
	demuxLogs(w, logReader)
}

// demuxLogs strips the stdout/stderr frame headers the daemon adds to logs
// of containers started without a TTY.
func demuxLogs(w io.Writer, r io.Reader) error {
	_, err := stdcopy.StdCopy(w, w, r)
	return err
}
