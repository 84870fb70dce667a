package provider

import "fmt"

// TransientError marks a failure that is worth retrying: HTTP 429, 5xx, or
// a network-level error. It is consumed by the retry loop and normally never
// escapes the client.
type TransientError struct {
	StatusCode int // 0 for network errors
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ProviderUnavailableError is returned when the retry budget for a resource
// is exhausted. The caller decides whether partial results accumulated before
// the failure are still usable; the client never returns silently truncated
// data.
type ProviderUnavailableError struct {
	Resource string
	Attempts int
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable for %s after %d consecutive failures: %v", e.Resource, e.Attempts, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }
