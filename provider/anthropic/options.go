package anthropic

import (
	"log/slog"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type options struct {
	apiKey         string
	baseURL        string
	client         *anthropic.Client
	requestOptions []option.RequestOption
	logger         *slog.Logger
}

// Option configures the Transport.
type Option func(*options)

// WithBaseURL overrides the API base URL (proxies, gateways, test servers).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithClient injects a pre-built SDK client. When set, the API key is not
// required and baseURL/request options are ignored.
func WithClient(client anthropic.Client) Option {
	return func(o *options) { o.client = &client }
}

// WithRequestOptions appends SDK request options applied to every call.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) { o.requestOptions = append(o.requestOptions, opts...) }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}
