package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrHTTPStatus indicates the server answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// NetworkError wraps a connection or timeout failure for a URL.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// HTTPError reports a non-2xx response.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *HTTPError) Unwrap() error { return ErrHTTPStatus }
