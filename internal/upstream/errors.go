package upstream

import "errors"

// Errors returned by the adapter. Callers branch with errors.Is; the HTTP
// layer maps them to response codes.
var (
	// ErrUnavailable wraps transport failures and unexpected status codes
	// from the registry.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrAuthFailed marks a 401 or 403 from the registry.
	ErrAuthFailed = errors.New("upstream authentication failed")

	// ErrRateLimited marks a 429 that survived the single retry.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrNotFound marks a lookup the registry has no entity for.
	ErrNotFound = errors.New("not found upstream")
)
