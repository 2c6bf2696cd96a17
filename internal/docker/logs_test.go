package docker

import (
	"bytes"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
)

func TestDemuxLogs(t *testing.T) {
	var framed bytes.Buffer
	stdout := stdcopy.NewStdWriter(&framed, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(&framed, stdcopy.Stderr)
	stdout.Write([]byte("[OK] CSV: figures/metrics.csv\n"))
	stderr.Write([]byte("warning: no p95 for ttft\n"))

	var out bytes.Buffer
	if err := demuxLogs(&out, &framed); err != nil {
		t.Fatalf("demuxLogs: %v", err)
	}
	want := "[OK] CSV: figures/metrics.csv\nwarning: no p95 for ttft\n"
	if out.String() != want {
		t.Errorf("demuxLogs: got %q, want %q", out.String(), want)
	}
}
