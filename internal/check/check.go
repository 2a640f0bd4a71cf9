// Package check validates the external programs the pipeline depends on.
// Both HandBrakeCLI and ffprobe must resolve at startup; a missing program
// is fatal before the watch loop begins.
package check

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hbwatch/hbwatch/internal/config"
)

// Sentinel errors returned when a required external program is missing.
var (
	ErrEncoderNotFound = errors.New("HandBrakeCLI not found")
	ErrFfprobeNotFound = errors.New("ffprobe not found")
)

// Deps verifies that the encoder and prober binaries resolve and respond to
// --version / -version, logging the detected version lines. Any failure is
// a startup precondition failure.
func Deps(cfg *config.Config, log zerolog.Logger) error {
	v, err := versionLine(cfg.HandBrakePath, "--version")
	if err != nil {
		return ErrEncoderNotFound
	}
	log.Info().Str("version", v).Msg("HandBrakeCLI available")

	v, err = versionLine(cfg.FFprobePath, "-version")
	if err != nil {
		return ErrFfprobeNotFound
	}
	log.Info().Str("version", v).Msg("ffprobe available")
	return nil
}

// versionLine runs the program with its version flag and returns the first
// output line.
func versionLine(binary, flag string) (string, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return "", err
	}
	out, err := exec.Command(binary, flag).Output()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.Index(line, "\n"); idx > 0 {
		line = line[:idx]
	}
	return line, nil
}
