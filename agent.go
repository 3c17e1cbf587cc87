package reef

import (
	"context"
	"log/slog"
)

// Request is one incoming conversational request: the new input text, the
// identity of the session it belongs to, and the prior history loaded by the
// caller.
type Request struct {
	Input     string
	UserID    string
	SessionID string
	History   []ConversationMessage
}

// Agent drives a Transport through the bounded tool-use recursion loop.
// One Agent serves many concurrent requests; each request owns its own
// payload and recursion budget, so no mutable state is shared between them.
type Agent struct {
	name            string
	description     string
	transport       Transport
	modelID         string
	streaming       bool
	inference       InferenceConfig
	retriever       Retriever
	tools           *toolRuntime
	promptTemplate  string
	promptVariables TemplateVariables
	tokenHook       func(text string)
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel sets the model identifier sent to the transport.
func WithModel(modelID string) Option {
	return func(a *Agent) { a.modelID = modelID }
}

// WithStreaming makes Respond callers default to the streaming strategy via
// Streaming(). Both strategies remain available regardless.
func WithStreaming(enabled bool) Option {
	return func(a *Agent) { a.streaming = enabled }
}

// WithInference merges inference parameter overrides over the defaults.
func WithInference(cfg InferenceConfig) Option {
	return func(a *Agent) { a.inference = cfg }
}

// WithRetriever splices retrieved context into the system prompt on every
// request.
func WithRetriever(r Retriever) Option {
	return func(a *Agent) { a.retriever = r }
}

// WithSystemPrompt replaces the default prompt template and its variables.
// The template may contain {{name}} placeholders resolved from vars.
func WithSystemPrompt(template string, vars TemplateVariables) Option {
	return func(a *Agent) {
		if template != "" {
			a.promptTemplate = template
		}
		if vars != nil {
			a.promptVariables = vars
		}
	}
}

// WithTokenHook registers a callback invoked once per streamed text
// fragment, for telemetry or UI echo. Panics in the hook are recovered so a
// failing hook never blocks the loop.
func WithTokenHook(hook func(text string)) Option {
	return func(a *Agent) { a.tokenHook = hook }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// defaultModelID is used when WithModel is not given.
const defaultModelID = "claude-3-5-sonnet-20240620"

// New creates an Agent on the given transport. tools may be nil for a
// tool-free agent; a non-nil config is validated here, so malformed tool
// configuration fails at construction, before any transport call.
func New(name, description string, transport Transport, tools *ToolConfig, opts ...Option) (*Agent, error) {
	if transport == nil {
		return nil, &ErrConfig{Reason: "transport is required"}
	}
	a := &Agent{
		name:           name,
		description:    description,
		transport:      transport,
		modelID:        defaultModelID,
		promptTemplate: defaultPromptTemplate(name, description),
		logger:         nopLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if tools != nil {
		rt, err := resolveTools(tools)
		if err != nil {
			return nil, err
		}
		a.tools = rt
	}
	return a, nil
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// Streaming reports whether the agent was configured for the streaming
// strategy.
func (a *Agent) Streaming() bool { return a.streaming }

// maxRecursions returns the recursion budget for one request: the configured
// cap when tools are present, otherwise forced to 1 so a tool-free request
// performs exactly one transport round.
func (a *Agent) maxRecursions() int {
	if a.tools == nil {
		return 1
	}
	return a.tools.maxRecursions
}

// Respond processes one request with the single-response strategy: the loop
// runs to completion and the final assistant message is returned.
func (a *Agent) Respond(ctx context.Context, req Request) (ConversationMessage, error) {
	payload, err := a.assemble(ctx, req)
	if err != nil {
		return ConversationMessage{}, err
	}
	return a.runSingle(ctx, payload)
}

// RespondStream processes one request with the streaming strategy. Text
// fragments are sent into ch as they arrive from the transport, one
// StreamChunk per fragment, followed by exactly one terminal chunk carrying
// the final message. ch is closed on every exit path, including errors and
// cancellation; consumers that abandon the channel early must cancel ctx.
// The returned message equals the terminal chunk's Final.
func (a *Agent) RespondStream(ctx context.Context, req Request, ch chan<- StreamChunk) (ConversationMessage, error) {
	payload, err := a.assemble(ctx, req)
	if err != nil {
		closeChunks(ch)
		return ConversationMessage{}, err
	}
	return a.runStream(ctx, payload, ch)
}

// assemble runs the per-request pipeline: conversation building, prompt
// composition, and payload assembly.
func (a *Agent) assemble(ctx context.Context, req Request) (*RequestPayload, error) {
	messages := buildConversation(req.History, req.Input)
	systemPrompt, err := a.composeSystemPrompt(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	return a.buildPayload(messages, systemPrompt), nil
}

// notifyToken invokes the token hook, recovering panics so a broken hook
// cannot take down the loop.
func (a *Agent) notifyToken(text string) {
	if a.tokenHook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("token hook panicked", "agent", a.name, "panic", r)
		}
	}()
	a.tokenHook(text)
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
