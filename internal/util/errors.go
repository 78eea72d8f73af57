package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrValidation indicates a bad rating, technique or otherwise invalid input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a required row or resource was not found
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the local database could not be reached.
	// Callers must surface this distinctly from a legitimately empty result.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAtomicity indicates a multi-step transaction partially applied.
	// This is a programmer error, never a condition to recover from.
	ErrAtomicity = errors.New("atomicity violation")

	// ErrCorrupt indicates a remote change payload could not be decoded
	ErrCorrupt = errors.New("corrupt payload")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
