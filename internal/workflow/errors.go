package workflow

import "errors"

// The four failure kinds the portal distinguishes. Handlers map them to
// different HTTP statuses and the UI renders different messages, so they
// must stay distinct sentinels rather than one generic error.
var (
	// ErrPermissionDenied: the actor lacks the capability for the
	// attempted stage. Recoverable by the caller; never retried.
	ErrPermissionDenied = errors.New("permission denied for this stage")

	// ErrInvalidState: the document is not in a status from which the
	// requested operation is legal.
	ErrInvalidState = errors.New("operation not legal from current status")

	// ErrConflict: the document changed between read and write (two
	// actors racing on the same stage). Detected by the conditional
	// update at the persistence boundary.
	ErrConflict = errors.New("document was modified concurrently")

	// ErrPersistence: the authoritative store could not be reached. The
	// operation must be treated as not applied.
	ErrPersistence = errors.New("persistence failure")
)
