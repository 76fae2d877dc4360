package transform

import "errors"

var (
	// ErrGenerationFailed marks a fatal provider failure for the text and
	// structured strategies (including timeouts). Nothing is cached,
	// recorded, or billed for the failed request.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrStoreFailure marks a non-recoverable storage error (permissions,
	// transient I/O). Surfaced to the caller as a server error.
	ErrStoreFailure = errors.New("storage failure")

	// errCacheUnavailable is internal: the backing table does not exist
	// (un-migrated environment). Caching is disabled for the call and the
	// pipeline continues; the caller never sees this as an error.
	errCacheUnavailable = errors.New("transformation cache unavailable")
)

// ValidationError rejects a request at the boundary before any pipeline
// stage runs. It never produces a usage event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
