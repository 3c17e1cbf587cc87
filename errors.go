package reef

import (
	"fmt"
	"time"
)

// ErrConfig reports an invalid agent or transport configuration. It is
// raised eagerly, at construction or first use, and never retried.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string {
	return "config: " + e.Reason
}

// ErrTransport reports a failed transport call (network, auth, rate limit).
// The loop logs it with context and returns it unmodified; retry, if any,
// is an external collaborator's responsibility.
type ErrTransport struct {
	Provider string
	Err      error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Provider, e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// ErrToolDispatch reports a tool handler failure during a tool round.
type ErrToolDispatch struct {
	Tool string
	Err  error
}

func (e *ErrToolDispatch) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("tool dispatch: %v", e.Err)
	}
	return fmt.Sprintf("tool dispatch %s: %v", e.Tool, e.Err)
}

func (e *ErrToolDispatch) Unwrap() error { return e.Err }

// ErrHTTP carries an HTTP status for transport errors, letting the retry
// middleware classify transient failures (429, 503) structurally.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration // zero when no Retry-After hint was present
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
