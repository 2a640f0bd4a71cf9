// Package handbrake builds and runs HandBrakeCLI invocations for the encode
// pipeline. The argument builder is a pure function over the job so the
// resolution-conditional flag logic is testable without spawning a process.
package handbrake

import (
	"strconv"

	"github.com/hbwatch/hbwatch/internal/state"
)

// Encoding constants. The encoder is fixed to hardware H.265 at a fixed
// quality; resolution is the only per-file variable.
const (
	Encoder = "nvenc_h265"
	Quality = 22

	// DownscaleThreshold is the source height above which output is capped.
	DownscaleThreshold = 540
	// DownscaleHeight is the target height applied above the threshold.
	DownscaleHeight = 480
)

// TargetFor returns the encode target for a source height: sources at or
// below the threshold keep their resolution (Height zero), taller sources
// are capped at DownscaleHeight.
func TargetFor(sourceHeight int) state.Target {
	t := state.Target{Encoder: Encoder}
	if sourceHeight > DownscaleThreshold {
		t.Height = DownscaleHeight
	}
	return t
}

// BuildArgs constructs the complete HandBrakeCLI argument vector for a job
// (excluding the binary name). Audio and subtitle tracks are always kept,
// output is optimized for streaming, and aspect ratio is preserved.
func BuildArgs(job state.EncodeJob) []string {
	args := make([]string, 0, 24)

	args = append(args,
		"-i", job.InputPath,
		"-o", job.OutputPath,
		"--preset-import-file", "none",
		"-e", job.Target.Encoder,
		"-q", strconv.Itoa(Quality),
	)

	if job.Target.Height > 0 {
		args = append(args, "--height", strconv.Itoa(job.Target.Height))
	}

	args = append(args,
		"--keep-display-aspect",
		"-O",
		"--all-audio",
		"--all-subtitles",
		"--copy-timestamps",
		"--native-language", "eng",
		"--non-anamorphic",
	)

	return args
}
