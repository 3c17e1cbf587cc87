// Package anthropic implements reef.Transport on the Anthropic Messages API
// via the official SDK. Single calls use Messages.New; streaming uses
// Messages.NewStreaming with the SDK accumulator, forwarding text deltas in
// arrival order and returning the accumulated final message.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/nevindra/reef"
)

// providerName tags errors and tool dispatch with the transport identity.
const providerName = "anthropic"

// Transport implements reef.Transport for the Anthropic API. Safe for
// concurrent use; the underlying SDK client shares no per-call state.
type Transport struct {
	client anthropic.Client
	logger *slog.Logger
}

var _ reef.Transport = (*Transport)(nil)

// New creates an Anthropic transport. An API key is required unless a
// pre-built client is injected via WithClient.
func New(apiKey string, opts ...Option) (*Transport, error) {
	o := options{apiKey: apiKey}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" && o.client == nil {
		return nil, &reef.ErrConfig{Reason: "anthropic API key or client is required"}
	}

	t := &Transport{logger: o.logger}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if o.client != nil {
		t.client = *o.client
		return t, nil
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(o.apiKey)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.requestOptions...)
	t.client = anthropic.NewClient(clientOpts...)
	return t, nil
}

// Name returns "anthropic".
func (t *Transport) Name() string { return providerName }

// Send issues a single Messages API call and returns the complete response.
func (t *Transport) Send(ctx context.Context, req *reef.RequestPayload) (*reef.ModelResponse, error) {
	params := buildParams(req)
	message, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return nil, t.wrapErr(err)
	}
	return convertMessage(message), nil
}

// Stream opens a Messages API event stream, invokes emit once per text delta
// in arrival order, and returns the accumulated final message. The stream is
// drained and closed inside this call regardless of outcome; context
// cancellation surfaces as the stream error and is returned, not swallowed.
func (t *Transport) Stream(ctx context.Context, req *reef.RequestPayload, emit func(text string)) (*reef.ModelResponse, error) {
	params := buildParams(req)
	stream := t.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, t.wrapErr(err)
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				emit(text.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, t.wrapErr(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return convertMessage(&acc), nil
}

// wrapErr classifies an SDK error: API errors carry their HTTP status (and
// Retry-After hint when present) so retry middleware can act on them, and
// everything is wrapped as a transport error for the caller.
func (t *Transport) wrapErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		t.logger.Error("anthropic API call failed", "status", apierr.StatusCode, "error", err)
		return &reef.ErrTransport{Provider: providerName, Err: &reef.ErrHTTP{
			Status:     apierr.StatusCode,
			Body:       err.Error(),
			RetryAfter: retryAfterOf(apierr),
		}}
	}
	t.logger.Error("anthropic call failed", "error", err)
	return &reef.ErrTransport{Provider: providerName, Err: err}
}

// retryAfterOf parses the Retry-After response header (seconds form) from an
// API error, or 0.
func retryAfterOf(apierr *anthropic.Error) time.Duration {
	if apierr.Response == nil {
		return 0
	}
	header := apierr.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// --- payload conversion ---

// buildParams maps the payload onto Anthropic message parameters.
func buildParams(req *reef.RequestPayload) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
		Messages:    convertTurns(req.Messages),
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

// convertTurns maps payload turns onto Anthropic message params. A turn with
// structured blocks converts block by block; a plain turn becomes a single
// text block.
func convertTurns(turns []reef.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		var blocks []anthropic.ContentBlockParamUnion
		if len(turn.Blocks) > 0 {
			blocks = convertBlocks(turn.Blocks)
		} else {
			blocks = []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.Text)}
		}
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}
	return messages
}

func convertBlocks(blocks []reef.ContentBlock) []anthropic.ContentBlockParamUnion {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case reef.BlockText:
			out = append(out, anthropic.NewTextBlock(b.Text))
		case reef.BlockToolUse:
			out = append(out, anthropic.NewToolUseBlock(b.ID, decodeInput(b.Input), b.Name))
		case reef.BlockToolResult:
			out = append(out, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
		}
	}
	return out
}

// decodeInput parses tool input JSON into a generic value, falling back to
// an empty object so a malformed input never aborts the request build.
func decodeInput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{}
	}
	return decoded
}

// convertTools maps transport-format declarations onto Anthropic tool params.
func convertTools(tools []reef.ToolDeclaration) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, decl := range tools {
		var schema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		_ = json.Unmarshal(decl.InputSchema, &schema)
		if schema.Type == "" {
			schema.Type = "object"
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       constant.Object(schema.Type),
					Properties: schema.Properties,
					Required:   schema.Required,
				},
			},
		})
	}
	return out
}

// --- response conversion ---

// convertMessage maps an Anthropic message onto the transport-neutral
// response shape, preserving block order.
func convertMessage(message *anthropic.Message) *reef.ModelResponse {
	resp := &reef.ModelResponse{
		StopReason: string(message.StopReason),
		Usage: reef.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}
	for _, content := range message.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content = append(resp.Content, reef.TextBlock(block.Text))
		case anthropic.ToolUseBlock:
			resp.Content = append(resp.Content, reef.ToolUseBlock(block.ID, block.Name, json.RawMessage(block.Input)))
		}
	}
	return resp
}
