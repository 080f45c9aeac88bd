package download

import (
	"errors"
	"fmt"
)

// Sentinel errors for the download package.
var (
	// ErrServerNotResumable is returned when the server does not advertise
	// both Content-Length and Accept-Ranges: bytes.
	ErrServerNotResumable = errors.New("server does not support resumable downloads")

	// ErrUnexpectedStatus is returned for a response status the engine cannot use.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNetworkExhausted is returned when transient failures outlast the retry budget.
	ErrNetworkExhausted = errors.New("network retries exhausted")

	// ErrSizeMismatch reports that the bytes received differ from the advertised size.
	ErrSizeMismatch = errors.New("downloaded size does not match content length")

	// ErrUnexpected wraps any other fault. It is never retried.
	ErrUnexpected = errors.New("unexpected download error")

	// ErrStalled is returned when no bytes arrive within the read timeout.
	ErrStalled = errors.New("transfer stalled")

	// ErrNotFound is returned when a task record is not found in the database.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned for a state change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ExhaustedError carries the last transient error once retries run out.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrNetworkExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrNetworkExhausted, e.Err} }

type unexpectedError struct {
	err error
}

func (e *unexpectedError) Error() string { return e.err.Error() }

func (e *unexpectedError) Unwrap() []error { return []error{ErrUnexpected, e.err} }

func unexpected(format string, args ...any) error {
	return &unexpectedError{err: fmt.Errorf(format, args...)}
}
