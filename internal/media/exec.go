// Package media wraps the external tools used for stickers and downloads:
// ffmpeg, webpmux and yt-dlp. It also fetches remote files and link previews.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecError reports a failed external tool run.
type ExecError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if s := lastLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// Runner executes a tool and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ExecError{Tool: name, Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// Tools names the binaries to invoke. Empty fields use the tool name and
// rely on PATH.
type Tools struct {
	FFmpeg  string
	WebPMux string
	YtDlp   string
}

func (t Tools) withDefaults() Tools {
	if t.FFmpeg == "" {
		t.FFmpeg = "ffmpeg"
	}
	if t.WebPMux == "" {
		t.WebPMux = "webpmux"
	}
	if t.YtDlp == "" {
		t.YtDlp = "yt-dlp"
	}
	return t
}

// Check reports the first tool that cannot be found on PATH.
func (t Tools) Check() error {
	t = t.withDefaults()
	for _, bin := range []string{t.FFmpeg, t.WebPMux, t.YtDlp} {
		if _, err := exec.LookPath(bin); err != nil {
			return &ExecError{Tool: bin, Err: err}
		}
	}
	return nil
}
