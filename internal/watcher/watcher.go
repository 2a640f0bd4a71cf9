// Package watcher implements the orchestration loop: scan the watched root,
// gate candidates through the suffix validator, probe resolution, dispatch
// the encoder, and record every outcome in the state store and event log.
// Processing is strictly sequential; at most one encode job exists at any
// instant.
package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hbwatch/hbwatch/internal/config"
	"github.com/hbwatch/hbwatch/internal/display"
	"github.com/hbwatch/hbwatch/internal/handbrake"
	"github.com/hbwatch/hbwatch/internal/metrics"
	"github.com/hbwatch/hbwatch/internal/probe"
	"github.com/hbwatch/hbwatch/internal/state"
)

const defaultProgressRefresh = 5 * time.Second

// Prober detects the source height of a video file.
type Prober interface {
	Height(ctx context.Context, path string) (int, error)
}

// Dispatcher runs the encoder for one job.
type Dispatcher interface {
	Dispatch(job state.EncodeJob) (handbrake.Outcome, error)
}

// Watcher drives the scan/validate/probe/dispatch loop for one run.
type Watcher struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *state.Store
	prober Prober
	disp   Dispatcher

	// terminal tracks files that reached a terminal state this run (either
	// recorded as failed or completed); they are never retried within the
	// run, even though they reappear in every scan.
	terminal map[string]bool

	// reportedEmpty tracks folders already recorded as having nothing to do.
	reportedEmpty map[string]bool

	// progressRefresh is how often the in-flight job's progress estimate is
	// republished while a dispatch blocks.
	progressRefresh time.Duration
}

// New assembles a Watcher. Nil prober or dispatcher select the production
// implementations.
func New(cfg *config.Config, log zerolog.Logger, store *state.Store, prober Prober, disp Dispatcher) *Watcher {
	if prober == nil {
		prober = probe.New(cfg.FFprobePath, nil)
	}
	if disp == nil {
		disp = handbrake.NewDispatcher(cfg.HandBrakePath, nil)
	}
	return &Watcher{
		cfg:             cfg,
		log:             log,
		store:           store,
		prober:          prober,
		disp:            disp,
		terminal:        make(map[string]bool),
		reportedEmpty:   make(map[string]bool),
		progressRefresh: defaultProgressRefresh,
	}
}

// Run polls the watch root until ctx is cancelled, then drains: the pass in
// progress finishes its in-flight file, state is cleared, and a final line
// is logged. Event log files are never cleared.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().
		Str("dir", w.cfg.WatchDir).
		Dur("interval", w.cfg.PollInterval).
		Msg("watching for new video files")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-timer.C:
		}

		w.pass(ctx)
		metrics.ScansTotal.Inc()
		timer.Reset(w.cfg.PollInterval)
	}
}

// shutdown completes the drain protocol. Any in-flight dispatch has already
// finished by the time we get here; clearing state while a job is processing
// would violate the store contract.
func (w *Watcher) shutdown() error {
	w.log.Info().Msg("interrupt received, draining")
	pending, completed, failed := w.store.Counts()
	w.log.Info().
		Int("pending", pending).
		Int("completed", completed).
		Int("failed", failed).
		Msg("run summary")
	if err := w.store.ClearAll(); err != nil {
		w.log.Error().Err(err).Msg("clearing state failed")
		return err
	}
	w.log.Info().Msg("state cleared, shutting down")
	return nil
}

// pass runs one scan over the watch root and processes every eligible file
// sequentially. Cancellation is checked between files so a drain begins
// promptly; the in-flight file is always allowed to finish.
func (w *Watcher) pass(ctx context.Context) {
	folders, err := w.listFolders()
	if err != nil {
		w.log.Error().Err(err).Str("dir", w.cfg.WatchDir).Msg("cannot enumerate watch root")
		return
	}

	var queue []candidate
	for _, folder := range folders {
		found, err := w.scanFolder(folder)
		if err != nil {
			// Environmental: skip this folder for the pass, keep going.
			w.log.Error().Err(err).Str("folder", folder).Msg("cannot scan folder, skipping this pass")
			continue
		}
		queue = append(queue, w.filter(folder, found)...)
	}

	if len(queue) > 0 {
		w.log.Info().Int("count", len(queue)).Msg("eligible files found")
	}
	w.publishPending(queue)

	for i, cand := range queue {
		if ctx.Err() != nil {
			w.log.Info().Msg("drain requested, not starting further files")
			return
		}
		w.publishPending(queue[i+1:])
		w.process(ctx, cand)
	}
	w.publishPending(nil)
}

// publishPending replaces the pending collection with the not-yet-started
// remainder of the queue. Store failures are environmental: logged, loop
// continues.
func (w *Watcher) publishPending(queue []candidate) {
	paths := make([]string, 0, len(queue))
	for _, c := range queue {
		paths = append(paths, c.inputPath)
	}
	if err := w.store.SetPending(paths); err != nil {
		w.log.Error().Err(err).Msg("publishing pending list failed")
	}
}

// process drives one candidate through probe, dispatch, and bookkeeping.
// Every path out of here marks the file terminal for this run.
func (w *Watcher) process(ctx context.Context, cand candidate) {
	w.terminal[cand.inputPath] = true

	height, err := w.prober.Height(ctx, cand.inputPath)
	if err != nil {
		w.fail(cand.inputPath, "could not determine resolution", metrics.ReasonProbe)
		if errors.Is(err, probe.ErrParse) {
			w.log.Warn().Str("path", cand.inputPath).Msg("no video height in probe output")
		} else {
			w.log.Error().Err(err).Str("path", cand.inputPath).Msg("probe failed")
		}
		return
	}

	job := state.EncodeJob{
		ID:           uuid.New(),
		InputPath:    cand.inputPath,
		OutputPath:   cand.outputPath,
		Folder:       cand.folder,
		SourceHeight: height,
		Target:       handbrake.TargetFor(height),
		Started:      time.Now(),
	}

	if job.Target.Height > 0 {
		w.log.Info().
			Str("job", job.ID.String()).
			Str("path", job.InputPath).
			Int("source_height", height).
			Int("target_height", job.Target.Height).
			Msg("encoding with downscale")
	} else {
		w.log.Info().
			Str("job", job.ID.String()).
			Str("path", job.InputPath).
			Int("source_height", height).
			Msg("encoding at source resolution")
	}

	if err := w.store.SetCurrent(job, 0); err != nil {
		w.log.Error().Err(err).Msg("publishing current job failed")
	}

	outcome, dispatchErr := w.dispatchWithProgress(job)

	completed := time.Now()
	if dispatchErr != nil {
		switch {
		case errors.Is(dispatchErr, handbrake.ErrOutputExists):
			// The pre-dispatch check normally catches this; the dispatcher
			// re-checks in case the output appeared meanwhile.
			w.fail(job.InputPath, "output already exists", metrics.ReasonOutputExists)
		default:
			w.fail(job.InputPath, dispatchErr.Error(), metrics.ReasonEncoder)
			var encErr *handbrake.EncoderError
			if errors.As(dispatchErr, &encErr) && encErr.Stderr != "" {
				w.log.Error().Str("job", job.ID.String()).Str("stderr", lastLines(encErr.Stderr, 10)).Msg("encoder output")
			}
		}
		w.clearCurrent()
		return
	}

	rec := state.CompletionRecord{
		Input:          job.InputPath,
		Output:         job.OutputPath,
		OriginalSize:   outcome.OriginalSize,
		CompressedSize: outcome.CompressedSize,
		Started:        job.Started,
		Completed:      completed,
	}
	if err := w.store.AppendCompleted(rec); err != nil {
		w.log.Error().Err(err).Msg("recording completion failed")
	}
	w.clearCurrent()

	metrics.JobsCompletedTotal.Inc()
	if saved := outcome.OriginalSize - outcome.CompressedSize; saved > 0 {
		metrics.BytesSavedTotal.Add(float64(saved))
	}
	w.log.Info().
		Str("job", job.ID.String()).
		Str("output", job.OutputPath).
		Str("original", display.FormatBytes(outcome.OriginalSize)).
		Str("compressed", display.FormatBytes(outcome.CompressedSize)).
		Str("took", display.FormatDuration(rec.Duration())).
		Msg("encode completed")
}

// dispatchWithProgress runs the blocking dispatch while a ticker republishes
// the elapsed-time progress estimate. The dispatcher deliberately ignores
// cancellation so a drain lets the encoder finish its file. The ticker
// goroutine is joined before returning: once this function is back, nothing
// may write current again, or a late refresh would republish the finished
// job after the caller clears it.
func (w *Watcher) dispatchWithProgress(job state.EncodeJob) (handbrake.Outcome, error) {
	done := make(chan struct{})
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		ticker := time.NewTicker(w.progressRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				est := display.ProgressEstimate(time.Since(job.Started))
				if err := w.store.SetCurrent(job, est); err != nil {
					w.log.Error().Err(err).Msg("refreshing progress failed")
				}
			}
		}
	}()
	outcome, err := w.disp.Dispatch(job)
	close(done)
	<-idle
	return outcome, err
}

func (w *Watcher) clearCurrent() {
	if err := w.store.ClearCurrent(); err != nil {
		w.log.Error().Err(err).Msg("clearing current job failed")
	}
}

// fail records a per-file failure in the store, the metrics, and the log.
func (w *Watcher) fail(path, reason, category string) {
	if err := w.store.AppendFailed(state.FailureRecord{
		Path:      path,
		Reason:    reason,
		Timestamp: time.Now(),
	}); err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("recording failure failed")
	}
	metrics.JobsFailedTotal.WithLabelValues(category).Inc()
	w.log.Warn().Str("path", path).Str("reason", reason).Msg("file failed")
}
