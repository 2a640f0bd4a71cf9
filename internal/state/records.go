package state

import (
	"time"

	"github.com/google/uuid"
)

// Target holds the encoder settings chosen for a job. Height zero means the
// source resolution is preserved (no --height flag).
type Target struct {
	Height  int
	Encoder string
}

// EncodeJob is the unit flowing through the pipeline: one eligible input
// file, its computed output path, and the settings the dispatcher will use.
// Once terminal, the outcome lives on as a CompletionRecord or FailureRecord
// and the job is discarded.
type EncodeJob struct {
	ID           uuid.UUID
	InputPath    string
	OutputPath   string
	Folder       string
	SourceHeight int
	Target       Target
	Started      time.Time
}

// CompletionRecord captures a successful encode. Sizes are measured from
// disk independently, never derived from one another.
type CompletionRecord struct {
	Input          string
	Output         string
	OriginalSize   int64
	CompressedSize int64
	Started        time.Time
	Completed      time.Time
}

// Duration returns the wall-clock encode time.
func (r CompletionRecord) Duration() time.Duration {
	return r.Completed.Sub(r.Started)
}

// FailureRecord captures a per-file failure: a validator rejection, an
// existing-output conflict, a probe failure, or an encoder error. Records
// are append-only and cleared only at shutdown.
type FailureRecord struct {
	Path      string
	Reason    string
	Timestamp time.Time
}
