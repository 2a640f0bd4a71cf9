package handbrake

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/hbwatch/hbwatch/internal/state"
)

// Runner executes the encoder process and returns its captured stderr. The
// production runner blocks until the process exits; it deliberately takes no
// context so that an in-flight encode is allowed to finish during shutdown
// instead of being killed mid-file.
type Runner interface {
	Run(name string, args ...string) (stderr []byte, err error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stderrBuf.Bytes(), err
}

// Outcome reports the disk-measured result of a successful dispatch. Both
// sizes are read with os.Stat, never taken from encoder output.
type Outcome struct {
	OriginalSize   int64
	CompressedSize int64
}

// Dispatcher runs HandBrakeCLI for one job at a time.
type Dispatcher struct {
	binary string
	runner Runner
}

// NewDispatcher returns a Dispatcher invoking the given encoder binary. A
// nil runner selects the production ExecRunner.
func NewDispatcher(binary string, runner Runner) *Dispatcher {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Dispatcher{binary: binary, runner: runner}
}

// Dispatch encodes one job. The overwrite-prevention precondition is checked
// first: if the output path already exists the encoder is never invoked and
// ErrOutputExists is returned. A non-zero encoder exit is returned as an
// *EncoderError carrying the captured stderr. On success both file sizes are
// measured from disk.
func (d *Dispatcher) Dispatch(job state.EncodeJob) (Outcome, error) {
	if _, err := os.Stat(job.OutputPath); err == nil {
		return Outcome{}, ErrOutputExists
	}

	inInfo, err := os.Stat(job.InputPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("stat input: %w", err)
	}

	stderr, err := d.runner.Run(d.binary, BuildArgs(job)...)
	if err != nil {
		return Outcome{}, &EncoderError{Err: err, Stderr: string(stderr)}
	}

	outInfo, err := os.Stat(job.OutputPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("output file not created: %w", err)
	}

	return Outcome{
		OriginalSize:   inInfo.Size(),
		CompressedSize: outInfo.Size(),
	}, nil
}
