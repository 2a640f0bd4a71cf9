// Package logging provides the per-run event log: a zerolog logger whose
// output goes to the console and to one append-only file per run. The file
// is never truncated or deleted; each run creates a new one named after its
// start time.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// timeLayout is the line timestamp format in the event log.
const timeLayout = "2006-01-02 15:04:05"

// RunLog is the event log for one run.
type RunLog struct {
	Logger zerolog.Logger
	Path   string

	file *os.File
}

// New creates the log directory if needed, opens a new run file named after
// start, and returns a logger writing `<timestamp> - <message>` lines to
// both console and file. Level is parsed zerolog-style; unknown or empty
// values fall back to info.
func New(dir string, start time.Time, console io.Writer, level string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, "hbwatch-"+start.Format("20060102-150405")+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, perr := zerolog.ParseLevel(level); perr == nil {
			lvl = parsed
		}
	}

	if console == nil {
		console = os.Stdout
	}
	multi := zerolog.MultiLevelWriter(lineWriter(console), lineWriter(file))
	logger := zerolog.New(multi).Level(lvl).With().Timestamp().Logger()

	return &RunLog{Logger: logger, Path: path, file: file}, nil
}

// Close closes the run file. The file itself is left in place.
func (r *RunLog) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// lineWriter formats events as `<timestamp> - <message> [fields]`, the
// format the legacy monitor tooling expects to tail.
func lineWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: timeLayout,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return "-"
			}
			return fmt.Sprintf("- %s", i)
		},
	}
}
