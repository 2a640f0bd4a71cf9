// Package state persists the pipeline's four monitor-facing collections
// (pending, current, completed, failed) as JSON files. The files are the
// only channel to the external monitor process, so every write publishes a
// full collection atomically: a reader never observes a half-written file.
//
// The JSON field names and the state file names are a compatibility
// contract with the monitor and must not change.
package state

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// State file names, kept from the legacy layout the monitor reads.
const (
	pendingFile   = "queue.json"
	currentFile   = "current.json"
	completedFile = "completed.json"
	failedFile    = "errors.json"
)

// --- Wire types (external contract, field set is fixed) ---

type pendingEntry struct {
	Path string `json:"path"`
}

type currentEntry struct {
	Path             string `json:"path"`
	Folder           string `json:"folder"`
	Started          string `json:"started"`
	ProgressEstimate int    `json:"progress_estimate"`
}

type completedEntry struct {
	Input            string  `json:"input"`
	Output           string  `json:"output"`
	OriginalSizeMB   float64 `json:"original_size_mb"`
	CompressedSizeMB float64 `json:"compressed_size_mb"`
	Started          string  `json:"started"`
	Completed        string  `json:"completed"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

type failedEntry struct {
	Path      string `json:"path"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// Store owns the four collections for one run. There is a single writer per
// collection, but the progress ticker refreshes current while the main loop
// is blocked in a dispatch, so a mutex guards the in-memory copies.
type Store struct {
	dir string

	mu        sync.Mutex
	pending   []pendingEntry
	current   *currentEntry
	completed []completedEntry
	failed    []failedEntry
}

// Open creates (if needed) the state directory and returns a Store rooted
// there. The collections start empty; existing files from a previous run
// are overwritten on the first write of each collection.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// SetPending replaces the pending list with the given input paths, in order.
func (s *Store) SetPending(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = make([]pendingEntry, 0, len(paths))
	for _, p := range paths {
		s.pending = append(s.pending, pendingEntry{Path: p})
	}
	return s.publish(pendingFile, s.pending)
}

// SetCurrent publishes the in-flight job snapshot with the given progress
// estimate. The estimate is elapsed-time based, never encoder-reported.
func (s *Store) SetCurrent(job EncodeJob, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &currentEntry{
		Path:             job.InputPath,
		Folder:           job.Folder,
		Started:          formatTime(job.Started),
		ProgressEstimate: progress,
	}
	return s.publish(currentFile, s.current)
}

// ClearCurrent publishes an empty current snapshot.
func (s *Store) ClearCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	return s.publish(currentFile, struct{}{})
}

// AppendCompleted appends a completion record and republishes the full
// completed collection.
func (s *Store) AppendCompleted(rec CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = append(s.completed, completedEntry{
		Input:            rec.Input,
		Output:           rec.Output,
		OriginalSizeMB:   roundMB(rec.OriginalSize),
		CompressedSizeMB: roundMB(rec.CompressedSize),
		Started:          formatTime(rec.Started),
		Completed:        formatTime(rec.Completed),
		DurationSeconds:  rec.Duration().Seconds(),
	})
	return s.publish(completedFile, s.completed)
}

// AppendFailed appends a failure record and republishes the full failed
// collection.
func (s *Store) AppendFailed(rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed = append(s.failed, failedEntry{
		Path:      rec.Path,
		Reason:    rec.Reason,
		Timestamp: formatTime(rec.Timestamp),
	})
	return s.publish(failedFile, s.failed)
}

// Counts returns the current collection sizes (pending, completed, failed).
func (s *Store) Counts() (pending, completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), len(s.completed), len(s.failed)
}

// ClearAll resets all four collections to empty and publishes the empty
// state. Called exactly once, at shutdown, after any in-flight job has
// reached a terminal state.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.current = nil
	s.completed = nil
	s.failed = nil

	var firstErr error
	for file, v := range map[string]any{
		pendingFile:   []pendingEntry{},
		currentFile:   struct{}{},
		completedFile: []completedEntry{},
		failedFile:    []failedEntry{},
	} {
		if err := s.publish(file, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// publish serializes v and atomically replaces the named state file.
// Callers hold s.mu.
func (s *Store) publish(file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", file, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, file)
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", file, err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op once committed

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", file, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// roundMB converts bytes to megabytes rounded to two decimals, matching the
// monitor's size display contract.
func roundMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return math.Round(mb*100) / 100
}
