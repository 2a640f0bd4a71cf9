// Package display holds pure formatting helpers for log output and the
// elapsed-time progress estimate published to the monitor.
package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, ...).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatDuration renders a duration as "1h02m03s" / "4m05s" / "12s" for log
// lines. Sub-second durations round down to "0s".
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// progressRef is the elapsed time mapped to the top of the estimate band.
// The encoder reports no usable progress, so the estimate is a pure
// function of elapsed wall-clock time: a linear ramp that never reaches
// 100 until the job actually finishes.
const progressRef = 30 * time.Minute

// ProgressEstimate maps elapsed encode time to a 0-95 percentage for the
// monitor. It is monotone in elapsed and deliberately capped below 100.
func ProgressEstimate(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	frac := float64(elapsed) / float64(progressRef)
	if frac > 1 {
		frac = 1
	}
	return int(frac * 95)
}
