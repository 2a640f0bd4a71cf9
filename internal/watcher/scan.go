package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbwatch/hbwatch/internal/metrics"
	"github.com/hbwatch/hbwatch/internal/suffix"
)

// candidate is one eligible file discovered during a scan pass, with its
// computed output path. Recomputed each pass, never persisted.
type candidate struct {
	inputPath  string
	outputPath string
	folder     string
}

// listFolders returns the immediate subfolders of the watch root, sorted
// for deterministic processing order.
func (w *Watcher) listFolders() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, filepath.Join(w.cfg.WatchDir, e.Name()))
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// scanFolder walks one subfolder and returns every file with a supported
// video extension, sorted.
func (w *Watcher) scanFolder(folder string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && suffix.SupportedExtension(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// filter applies the suffix gate and the overwrite-prevention check to a
// folder's video files. Rejections become failure records immediately; the
// survivors come back as candidates. Files already terminal this run are
// skipped outright so nothing is retried within a run.
func (w *Watcher) filter(folder string, files []string) []candidate {
	if len(files) == 0 {
		if !w.reportedEmpty[folder] {
			w.reportedEmpty[folder] = true
			w.fail(folder, "no files with required suffix found", metrics.ReasonFolder)
		}
		return nil
	}

	var out []candidate
	for _, path := range files {
		if w.terminal[path] {
			continue
		}

		m := suffix.Validate(filepath.Base(path))
		if !m.Valid {
			w.terminal[path] = true
			w.fail(path, m.Reason, metrics.ReasonRejected)
			continue
		}

		outputPath := filepath.Join(filepath.Dir(path), m.OutputName)
		if _, err := os.Stat(outputPath); err == nil {
			w.terminal[path] = true
			w.fail(path, "output already exists", metrics.ReasonOutputExists)
			continue
		}

		out = append(out, candidate{
			inputPath:  path,
			outputPath: outputPath,
			folder:     folder,
		})
	}
	return out
}

// lastLines returns the trailing n lines of s for compact stderr logging.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
