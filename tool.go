package reef

import (
	"context"
	"encoding/json"
)

// ToolDeclaration is a tool signature in the transport's wire format
// (name, description, JSON Schema input).
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ClaudeFormatter is the capability a tool-like object exposes to serialize
// itself into the transport's declaration format. List-shaped tool
// configuration accepts any mix of ClaudeFormatter items and verbatim
// ToolDeclaration values.
type ClaudeFormatter interface {
	ToClaudeFormat() ToolDeclaration
}

// Tool defines an agent capability with one or more tool functions.
type Tool interface {
	Definitions() []ToolDeclaration
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a tool execution. A non-empty Error is
// surfaced to the model as an error-flagged tool result rather than
// aborting the loop.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ToolHandlerFunc is a custom dispatch override. It receives the model's
// tool-bearing response and the conversation-so-far, and returns the turn to
// append as tool output. When set, it takes priority over the registry's
// built-in handler.
type ToolHandlerFunc func(ctx context.Context, resp *ModelResponse, conversation []Turn) (Turn, error)

// --- Registry ---

// ToolRegistry holds registered tools, serializes their declarations, and
// dispatches tool-use requests.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{}
	for _, t := range tools {
		r.Add(t)
	}
	return r
}

// Add registers a tool.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// ClaudeFormat returns the declarations of all registered tools in the
// transport's format.
func (r *ToolRegistry) ClaudeFormat() []ToolDeclaration {
	var defs []ToolDeclaration
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Execute dispatches a tool call by name. An unknown name yields an error
// result, not a loop failure — the model can recover from it.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				return t.Execute(ctx, name, args)
			}
		}
	}
	return ToolResult{Error: "unknown tool: " + name}, nil
}

// Handle is the registry's built-in dispatch handler. It executes every
// tool_use block in resp and returns a user-role turn of tool_result blocks,
// each paired by ID with the tool_use block that requested it. Execution
// failures become error-flagged results so the model sees them on the next
// round. providerTag identifies the transport for provider-specific
// formatting; the conversation is accepted for handler-interface parity and
// custom registries that need it.
func (r *ToolRegistry) Handle(ctx context.Context, providerTag string, resp *ModelResponse, _ []Turn) (Turn, error) {
	var blocks []ContentBlock
	for _, use := range resp.ToolUses() {
		result, err := r.Execute(ctx, use.Name, use.Input)
		switch {
		case err != nil:
			blocks = append(blocks, ToolResultBlock(use.ID, "error: "+err.Error(), true))
		case result.Error != "":
			blocks = append(blocks, ToolResultBlock(use.ID, "error: "+result.Error, true))
		default:
			blocks = append(blocks, ToolResultBlock(use.ID, result.Content, false))
		}
	}
	return Turn{Role: "user", Blocks: blocks}, nil
}

// --- Configuration ---

// defaultMaxRecursions bounds the tool-use loop when the caller does not
// set ToolConfig.MaxRecursions.
const defaultMaxRecursions = 5

// ToolConfig declares the agent's tool surface. Tool is polymorphic over two
// shapes: a *ToolRegistry (serialized via its own formatting routine) or a
// []any of tool-like items, each either a ClaudeFormatter or a verbatim
// ToolDeclaration. Handler optionally overrides dispatch; a list-shaped
// config without a Handler cannot be dispatched and is rejected at
// construction.
type ToolConfig struct {
	Tool          any
	MaxRecursions int
	Handler       ToolHandlerFunc
}

// toolRuntime is the tool configuration resolved once at construction: the
// dispatch route and declaration list are fixed here and never re-inspected
// per call.
type toolRuntime struct {
	declarations  []ToolDeclaration
	registry      *ToolRegistry
	handler       ToolHandlerFunc
	maxRecursions int
}

// resolveTools validates a ToolConfig and fixes the dispatch route.
func resolveTools(cfg *ToolConfig) (*toolRuntime, error) {
	rt := &toolRuntime{
		handler:       cfg.Handler,
		maxRecursions: defaultMaxRecursions,
	}
	if cfg.MaxRecursions > 0 {
		rt.maxRecursions = cfg.MaxRecursions
	}

	switch tool := cfg.Tool.(type) {
	case *ToolRegistry:
		rt.registry = tool
		rt.declarations = tool.ClaudeFormat()
	case []any:
		for _, item := range tool {
			switch it := item.(type) {
			case ClaudeFormatter:
				rt.declarations = append(rt.declarations, it.ToClaudeFormat())
			case ToolDeclaration:
				rt.declarations = append(rt.declarations, it)
			default:
				return nil, &ErrConfig{Reason: "tool list item is neither a ClaudeFormatter nor a ToolDeclaration"}
			}
		}
		if rt.handler == nil {
			return nil, &ErrConfig{Reason: "tool list without a custom handler cannot be dispatched"}
		}
	default:
		return nil, &ErrConfig{Reason: "unrecognized tool configuration shape"}
	}
	return rt, nil
}

// dispatch routes a tool-bearing response to the configured handler:
// custom handler first, then the registry's built-in handler.
func (rt *toolRuntime) dispatch(ctx context.Context, providerTag string, resp *ModelResponse, conversation []Turn) (Turn, error) {
	if rt.handler != nil {
		return rt.handler(ctx, resp, conversation)
	}
	if rt.registry != nil {
		return rt.registry.Handle(ctx, providerTag, resp, conversation)
	}
	// Unreachable after resolveTools validation.
	return Turn{}, &ErrConfig{Reason: "tool list without a custom handler cannot be dispatched"}
}
