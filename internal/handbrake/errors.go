package handbrake

import (
	"errors"
	"fmt"
)

// ErrOutputExists means the computed output path is already present on disk.
// The dispatcher refuses to run the encoder in that case; the check is never
// bypassed.
var ErrOutputExists = errors.New("output file already exists")

// EncoderError wraps a non-zero encoder exit, carrying the captured stderr
// for the event log.
type EncoderError struct {
	Err    error
	Stderr string
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder failed: %v", e.Err)
}

func (e *EncoderError) Unwrap() error { return e.Err }
