package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbwatch/hbwatch/internal/config"
	"github.com/hbwatch/hbwatch/internal/handbrake"
	"github.com/hbwatch/hbwatch/internal/state"
)

type fakeProber struct {
	heights map[string]int
	err     error
	calls   int
}

func (f *fakeProber) Height(_ context.Context, path string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.heights[path], nil
}

// fakeDispatcher simulates a successful encode by writing the output file.
// When block is non-nil, Dispatch waits on it first, so tests can hold a
// job in flight.
type fakeDispatcher struct {
	calls   atomic.Int64
	err     error
	block   chan struct{}
	lastJob state.EncodeJob
}

func (f *fakeDispatcher) Dispatch(job state.EncodeJob) (handbrake.Outcome, error) {
	f.calls.Add(1)
	f.lastJob = job
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return handbrake.Outcome{}, f.err
	}
	if err := os.WriteFile(job.OutputPath, make([]byte, 1024), 0o644); err != nil {
		return handbrake.Outcome{}, err
	}
	return handbrake.Outcome{OriginalSize: 4096, CompressedSize: 1024}, nil
}

type fixture struct {
	w      *Watcher
	cfg    *config.Config
	store  *state.Store
	prober *fakeProber
	disp   *fakeDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	watchDir := t.TempDir()
	store, err := state.Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.WatchDir = watchDir
	cfg.PollInterval = 10 * time.Millisecond

	prober := &fakeProber{heights: map[string]int{}}
	disp := &fakeDispatcher{}
	return &fixture{
		w:      New(&cfg, zerolog.Nop(), store, prober, disp),
		cfg:    &cfg,
		store:  store,
		prober: prober,
		disp:   disp,
	}
}

func (f *fixture) addFile(t *testing.T, folder, name string) string {
	t.Helper()
	dir := filepath.Join(f.cfg.WatchDir, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))
	return path
}

func readCollection(t *testing.T, store *state.Store, file string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.Dir(), file))
	if errors.Is(err, os.ErrNotExist) {
		// A collection that has never been published reads as empty,
		// matching the monitor's read contract.
		return nil
	}
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func readCurrent(t *testing.T, store *state.Store) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.Dir(), "current.json"))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPassEncodesEligibleFile(t *testing.T) {
	f := newFixture(t)
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 1080

	f.w.pass(context.Background())

	assert.Equal(t, int64(1), f.disp.calls.Load())
	assert.Equal(t, in, f.disp.lastJob.InputPath)
	assert.Equal(t, filepath.Join(f.cfg.WatchDir, "show", "ep01.mp4"), f.disp.lastJob.OutputPath)
	assert.Equal(t, 480, f.disp.lastJob.Target.Height, "1080p source downscales")

	completed := readCollection(t, f.store, "completed.json")
	require.Len(t, completed, 1)
	assert.Equal(t, in, completed[0]["input"])
	assert.Equal(t, f.disp.lastJob.OutputPath, completed[0]["output"])
	assert.GreaterOrEqual(t, completed[0]["duration_seconds"], float64(0))
}

func TestPassKeepsLowResolution(t *testing.T) {
	f := newFixture(t)
	in := f.addFile(t, "show", "ep01 xx.mp4")
	f.prober.heights[in] = 540

	f.w.pass(context.Background())

	require.Equal(t, int64(1), f.disp.calls.Load())
	assert.Zero(t, f.disp.lastJob.Target.Height, "540p source keeps resolution")
}

func TestPassRejectsInvalidSuffix(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "show", "ep01.mkv")

	f.w.pass(context.Background())

	assert.Zero(t, f.disp.calls.Load())
	assert.Zero(t, f.prober.calls, "rejected files are never probed")
	failed := readCollection(t, f.store, "errors.json")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0]["reason"], "suffix")

	// Not retried, not re-recorded on the next pass.
	f.w.pass(context.Background())
	assert.Len(t, readCollection(t, f.store, "errors.json"), 1)
}

func TestPassOutputExists(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "show", "ep01 xx.mkv")
	f.addFile(t, "show", "ep01.mp4") // output already present

	f.w.pass(context.Background())

	assert.Zero(t, f.disp.calls.Load(), "encoder must not run when output exists")
	assert.Zero(t, f.prober.calls, "no probe when output exists")

	failed := readCollection(t, f.store, "errors.json")
	// The pre-existing output itself is also a video file with an invalid
	// suffix, so two records: one rejection, one overwrite refusal.
	reasons := make([]string, 0, len(failed))
	for _, e := range failed {
		reasons = append(reasons, e["reason"].(string))
	}
	assert.Contains(t, reasons, "output already exists")
}

func TestPassProbeFailure(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.err = errors.New("ffprobe: exit status 1")

	f.w.pass(context.Background())

	assert.Zero(t, f.disp.calls.Load())
	failed := readCollection(t, f.store, "errors.json")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0]["reason"], "resolution")
}

func TestPassEncoderFailure(t *testing.T) {
	f := newFixture(t)
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 720
	f.disp.err = &handbrake.EncoderError{Err: errors.New("exit status 3"), Stderr: "boom"}

	f.w.pass(context.Background())

	failed := readCollection(t, f.store, "errors.json")
	require.Len(t, failed, 1)
	assert.Equal(t, "encoder failed: exit status 3", failed[0]["reason"])
	assert.Empty(t, readCollection(t, f.store, "completed.json"))

	// The failure is terminal for this run.
	f.w.pass(context.Background())
	assert.Equal(t, int64(1), f.disp.calls.Load())
}

func TestIdempotenceOverCompletedFolder(t *testing.T) {
	f := newFixture(t)
	// Folder holds only a finished output: suffix-stripped, no suffixed input.
	f.addFile(t, "show", "ep01.mp4")

	f.w.pass(context.Background())
	afterFirst := len(readCollection(t, f.store, "errors.json"))

	f.w.pass(context.Background())
	f.w.pass(context.Background())

	assert.Zero(t, f.disp.calls.Load(), "no work performed")
	assert.Zero(t, f.prober.calls)
	assert.Len(t, readCollection(t, f.store, "errors.json"), afterFirst,
		"repeat passes produce no new records")
}

func TestEmptyFolderReportedOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.cfg.WatchDir, "empty"), 0o755))

	f.w.pass(context.Background())
	f.w.pass(context.Background())

	failed := readCollection(t, f.store, "errors.json")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0]["reason"], "no files with required suffix")
}

func TestFullEncodeIsIdempotentNextPass(t *testing.T) {
	f := newFixture(t)
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 1080

	f.w.pass(context.Background())
	require.Equal(t, int64(1), f.disp.calls.Load())

	// Output now exists and the input is terminal: nothing new happens.
	f.w.pass(context.Background())
	assert.Equal(t, int64(1), f.disp.calls.Load())
	assert.Len(t, readCollection(t, f.store, "completed.json"), 1)
}

func TestRunDrainsInFlightJob(t *testing.T) {
	f := newFixture(t)
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 1080
	f.disp.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.w.Run(ctx) }()

	// Wait until the job is in flight.
	require.Eventually(t, func() bool { return f.disp.calls.Load() == 1 },
		2*time.Second, 5*time.Millisecond)

	// Interrupt while processing; the run must not exit before the
	// dispatcher finishes.
	cancel()
	select {
	case <-done:
		t.Fatal("run exited while a job was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.disp.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit after drain")
	}

	// The in-flight job finished (output written) and state was cleared.
	_, err := os.Stat(filepath.Join(f.cfg.WatchDir, "show", "ep01.mp4"))
	assert.NoError(t, err)
	for _, file := range []string{"queue.json", "completed.json", "errors.json"} {
		assert.Empty(t, readCollection(t, f.store, file), file)
	}
	var cur map[string]any
	data, err := os.ReadFile(filepath.Join(f.store.Dir(), "current.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &cur))
	assert.Empty(t, cur)
}

// A fast refresh interval drives the ticker path; once process returns the
// ticker goroutine must be gone, so current stays empty no matter how the
// final tick raced the dispatch return.
func TestProgressRefreshStopsWithDispatch(t *testing.T) {
	f := newFixture(t)
	f.w.progressRefresh = time.Millisecond
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 1080
	f.disp.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		f.w.pass(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return f.disp.calls.Load() == 1 },
		2*time.Second, time.Millisecond)

	// The refresh ticker republishes the in-flight snapshot while the
	// dispatcher blocks.
	require.Eventually(t, func() bool {
		return readCurrent(t, f.store)["path"] == in
	}, 2*time.Second, time.Millisecond)

	close(f.disp.block)
	<-done

	assert.Empty(t, readCurrent(t, f.store))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, readCurrent(t, f.store), "no late refresh after clear")
}

func TestShutdownLogsRunSummary(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.w.log = zerolog.New(&buf)
	in := f.addFile(t, "show", "ep01 xx.mkv")
	f.prober.heights[in] = 720

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.disp.calls.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	logged := buf.String()
	assert.Contains(t, logged, "run summary")
	assert.Contains(t, logged, `"completed":1`)
	assert.Contains(t, logged, `"failed":0`)
}

func TestRunStopsPromptlyWhenIdle(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("idle run did not stop on cancellation")
	}
}
