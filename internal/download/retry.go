package download

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"
)

// RetryPolicy retries transient failures a bounded number of times with a
// fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. onRetry, when non-nil, is called before each delay.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}
		if !IsTransient(err) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			return attempt, &ExhaustedError{Attempts: attempt, Err: err}
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsTransient reports whether err is a network failure worth retrying:
// timeouts, resets, refused connections, socket errors and truncated bodies.
// Client errors such as an unsupported scheme or a malformed URL are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrUnexpected) {
		return false
	}
	if errors.Is(err, ErrStalled) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// *url.Error wraps every client.Do failure; judge what it carries.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
