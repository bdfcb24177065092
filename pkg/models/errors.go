package models

import "errors"

// Error kinds surfaced by the core. Callers match them with errors.Is.
var (
	// ErrInvalidConfig indicates scheduler options failed validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrGraph indicates a problem with the unit graph, such as a dependency
	// cycle, an unknown unit ID, or a missing parent.
	ErrGraph = errors.New("graph error")

	// ErrStorage indicates a trial or reward log read or write failed.
	ErrStorage = errors.New("storage error")

	// ErrCancelled indicates a batch request was cancelled cooperatively.
	ErrCancelled = errors.New("cancelled")

	// ErrInternal indicates a non-finite numeric value or a violated
	// invariant.
	ErrInternal = errors.New("internal error")
)
