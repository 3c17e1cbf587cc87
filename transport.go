package reef

import "context"

// Transport abstracts the LLM backend. Implementations must be safe for
// concurrent independent calls; no in-flight call state is shared.
type Transport interface {
	// Send issues a single request and returns the complete response.
	Send(ctx context.Context, req *RequestPayload) (*ModelResponse, error)
	// Stream opens an event stream for the request, invoking emit once per
	// text fragment in arrival order, and returns the accumulated final
	// response after the stream is fully drained. The stream resource is
	// scoped inside the call: opened, drained, and closed even on error.
	// Context cancellation mid-stream is propagated, never swallowed.
	Stream(ctx context.Context, req *RequestPayload, emit func(text string)) (*ModelResponse, error)
	// Name returns the provider name (e.g. "anthropic").
	Name() string
}
