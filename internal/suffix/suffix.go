// Package suffix implements the filename gate that decides whether a video
// file is eligible for transcoding. Eligibility is opt-in by naming: the stem
// must end with a marker of one or two whitespace characters followed by a
// same-case "xx" or "XX" pair, and the extension must be a supported video
// container.
package suffix

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Supported input extensions (lowercase, with leading dot). The output
// container is always MP4 regardless of the input extension.
var supportedExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
	".avi": true,
	".wmv": true,
	".mpg": true,
}

// OutputExtension is the container extension applied to every output file.
const OutputExtension = ".mp4"

// Match is the result of validating a single filename. Valid carries the
// verdict; Reason is set only on rejection. On a valid match, Base is the
// stem with the marker removed and OutputName is the filename the encoded
// result will be written under.
type Match struct {
	Valid      bool
	Reason     string
	Base       string
	OutputName string
}

// Validate checks a bare filename (no directory components) against the
// eligibility rule. It is a pure function: no filesystem access, same input
// always yields the same Match, and absence of a match is a normal result
// rather than an error.
//
// The marker is exactly one or two whitespace characters followed by "xx" or
// "XX". Mixed-case pairs ("Xx", "xX") and runs of three or more whitespace
// characters are rejected.
func Validate(filename string) Match {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return Match{Reason: "unsupported extension " + strings.TrimPrefix(ext, ".")}
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if !strings.HasSuffix(stem, "xx") && !strings.HasSuffix(stem, "XX") {
		return Match{Reason: "missing required suffix pattern"}
	}

	rest := stem[:len(stem)-2]
	base := strings.TrimRightFunc(rest, unicode.IsSpace)
	switch utf8.RuneCountInString(rest[len(base):]) {
	case 1, 2:
		// marker whitespace is within bounds
	default:
		return Match{Reason: "missing required suffix pattern"}
	}
	if base == "" {
		return Match{Reason: "filename is only the suffix marker"}
	}

	return Match{
		Valid:      true,
		Base:       base,
		OutputName: base + OutputExtension,
	}
}

// SupportedExtension reports whether a filename carries one of the supported
// video container extensions, independent of the suffix marker. The scanner
// uses this to tell "video file with a bad name" apart from files it should
// ignore entirely.
func SupportedExtension(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}
