package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps any failure of the underlying network call,
	// including timeouts.
	ErrNetwork = errors.New("network error")

	// ErrCSRFUnavailable means neither the issuing endpoint nor the
	// fallback cookie yielded a CSRF token. Non-fatal for safe requests;
	// unsafe requests proceed without the header and the backend is
	// expected to reject them.
	ErrCSRFUnavailable = errors.New("csrf token unavailable")
)

// HTTPError is a completed request that came back with an error status.
// The body is kept raw; the apierrors package normalizes it.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Status)
}
