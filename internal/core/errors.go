// Package core implements the image analysis engines: geometry resolution,
// the boundary locator with sector refinement, duplicate detection, alias
// comparison, signal classification, and boundary-driven extraction.
package core

import (
	"context"
	"errors"

	"github.com/didzislauva/sdcard-forensics/internal/hasher"
	"github.com/didzislauva/sdcard-forensics/internal/pad"
)

var (
	// ErrConfiguration marks an invalid or missing parameter. Fatal, never
	// retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound means the boundary search exhausted the scanned range
	// without finding non-pad data. It is a negative result, not a crash.
	ErrNotFound = errors.New("no non-pad data found")
	// ErrAmbiguousSignal describes a WEAK or NONE alias tier. It is only
	// ever informational.
	ErrAmbiguousSignal = errors.New("ambiguous alias signal")
)

// Exit codes for the CLI surface.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitNotFound = 2
)

// ExitCode maps an operation error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	default:
		return ExitFatal
	}
}

// IsConfiguration reports whether err is a configuration problem,
// including unavailable pluggable capabilities.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, pad.ErrMatcherUnavailable) ||
		errors.Is(err, hasher.ErrUnknownHasher)
}

// IsCancelled reports whether err came from an interrupted context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
