package model

import "errors"

// Sentinel error kinds surfaced by the engine and its stores. Callers
// classify failures with errors.Is.
var (
	// ErrNotFound means a referenced event, rule, alert, or test does not
	// exist. Surfaced to the caller, no retry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means an illegal alert status change was
	// attempted. Surfaced to the caller, no retry.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation means a rule, condition, action, or test definition is
	// malformed. Rejected at authoring-consumption time, not at evaluation
	// time.
	ErrValidation = errors.New("validation error")

	// ErrSinkUnavailable means notification delivery failed. Logged and
	// surfaced as a warning on the outcome; never aborts alert creation.
	ErrSinkUnavailable = errors.New("notification sink unavailable")

	// ErrStorageFault means an audit, alert, or statistics write failed.
	// Propagated to the caller; partial side effects already committed are
	// not rolled back.
	ErrStorageFault = errors.New("storage fault")
)
