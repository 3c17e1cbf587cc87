package reef

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryTransport wraps a Transport and automatically retries transient HTTP
// errors (status 429 Too Many Requests and 503 Service Unavailable) with
// exponential backoff. The agent loop itself never retries; compose this
// wrapper around the transport when retry is wanted.
type retryTransport struct {
	inner       Transport
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger
}

// RetryOption configures a retryTransport.
type RetryOption func(*retryTransport)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryTransport) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 1s). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryTransport) { r.baseDelay = d }
}

// RetryTimeout sets the overall timeout for the entire retry sequence. The
// zero value (default) disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryTransport) { r.timeout = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN and final failures at ERROR; unset means no output.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryTransport) { r.logger = l }
}

// WithRetry wraps t with automatic retry on transient HTTP errors (429, 503).
// Retries use exponential backoff with jitter; when the error includes a
// Retry-After hint, the delay is at least that long. Compose with any
// Transport:
//
//	transport = reef.WithRetry(anthropicTransport)
//	transport = reef.WithRetry(anthropicTransport, reef.RetryMaxAttempts(5))
func WithRetry(t Transport, opts ...RetryOption) Transport {
	r := &retryTransport{
		inner:       t,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Name delegates to the inner transport.
func (r *retryTransport) Name() string { return r.inner.Name() }

// Send implements Transport with retry.
func (r *retryTransport) Send(ctx context.Context, req *RequestPayload) (*ModelResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		resp, err := r.inner.Send(ctx, req)
		if err == nil || !isTransient(err) {
			return resp, err
		}
		last = err
		r.logger.Warn("retrying transient error",
			"provider", r.inner.Name(),
			"status", statusOf(err),
			"attempt", i+1,
			"max_attempts", r.maxAttempts)
		if i < r.maxAttempts-1 {
			if err := sleepFor(ctx, retryDelay(r.baseDelay, i, err)); err != nil {
				return nil, err
			}
		}
	}
	r.logger.Error("all retry attempts exhausted",
		"provider", r.inner.Name(),
		"attempts", r.maxAttempts,
		"error", last)
	return nil, last
}

// Stream implements Transport with retry. A retry only happens when no text
// fragment has been emitted yet — once streaming has started, errors pass
// through immediately to avoid emitting duplicate content.
func (r *retryTransport) Stream(ctx context.Context, req *RequestPayload, emit func(text string)) (*ModelResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		var emitted bool
		resp, err := r.inner.Stream(ctx, req, func(text string) {
			emitted = true
			emit(text)
		})
		if err == nil || !isTransient(err) || emitted {
			return resp, err
		}
		last = err
		r.logger.Warn("retrying transient error (stream)",
			"provider", r.inner.Name(),
			"status", statusOf(err),
			"attempt", i+1,
			"max_attempts", r.maxAttempts)
		if i < r.maxAttempts-1 {
			if err := sleepFor(ctx, retryDelay(r.baseDelay, i, err)); err != nil {
				return nil, err
			}
		}
	}
	r.logger.Error("all retry attempts exhausted (stream)",
		"provider", r.inner.Name(),
		"attempts", r.maxAttempts,
		"error", last)
	return nil, last
}

// withTimeout returns a child context with a deadline if r.timeout is set.
// If timeout is zero or ctx already has an earlier deadline, ctx is returned
// unchanged.
func (r *retryTransport) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(r.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// sleepFor blocks for d or until ctx is cancelled.
func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isTransient reports whether err is a retryable HTTP error (429 or 503).
func isTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// retryDelay computes the delay before retry attempt i, using exponential
// backoff as a floor and the server's Retry-After value (if present) as a
// minimum.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := retryBackoff(base, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

var _ Transport = (*retryTransport)(nil)
