// Package probe wraps ffprobe for source resolution detection. The pipeline
// only needs the vertical resolution of the first video stream, so the probe
// asks ffprobe for exactly that one entry in plain CSV output.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrParse means ffprobe ran but its output did not contain a usable height.
// This is a per-file condition, not a run-level one: the caller records the
// file as failed and moves on.
var ErrParse = errors.New("no numeric height in ffprobe output")

// Runner executes an external command and returns its combined stdout. It
// exists so tests can exercise the prober without spawning processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, err error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Prober detects source video resolution via ffprobe.
type Prober struct {
	binary string
	runner Runner
}

// New returns a Prober invoking the given ffprobe binary. An empty binary
// resolves "ffprobe" from PATH; a nil runner selects the production
// ExecRunner.
func New(binary string, runner Runner) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{binary: binary, runner: runner}
}

// Args returns the ffprobe argument vector for reading the first video
// stream's height. Exported so the exact invocation is testable.
func Args(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=height",
		"-of", "csv=p=0",
		path,
	}
}

// Height returns the vertical resolution in pixels of the first video stream
// of the file at path. A failed invocation is returned as-is; output that
// cannot be parsed as a positive integer is reported as ErrParse.
func (p *Prober) Height(ctx context.Context, path string) (int, error) {
	out, err := p.runner.Run(ctx, p.binary, Args(path)...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	// ffprobe may emit one line per video stream; only the first matters.
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	height, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || height <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrParse, line)
	}
	return height, nil
}
