package session

import "errors"

// Domain errors, matched by surfaces with errors.Is. Anything else coming
// out of the manager is a programming or persistence error: fatal for the
// single request, safe to retry.
var (
	// ErrValidation covers user-correctable failures: bad timestamp
	// ordering, out-of-range option values, missing preconditions.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means no history entry has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the supplied version token is stale: the entry
	// was modified or deleted by someone else since it was read.
	ErrConflict = errors.New("version conflict")
)
