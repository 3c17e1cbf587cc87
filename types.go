package reef

import "encoding/json"

// --- Participant roles ---

// ParticipantRole identifies who produced a conversation message.
type ParticipantRole string

const (
	RoleUser      ParticipantRole = "user"
	RoleAssistant ParticipantRole = "assistant"
)

// --- Content blocks ---

// Block type tags, matching the transport wire format.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one element of a message's ordered content. Type selects
// which fields are meaningful: Text for text blocks; ID, Name, and Input for
// tool_use blocks; ToolUseID and Content for tool_result blocks.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result content block paired with the
// tool_use block that requested it.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// --- Conversation messages ---

// ConversationMessage is one stored turn of a conversation. Immutable once
// appended to history; the agent creates one when producing a final answer.
type ConversationMessage struct {
	Role    ParticipantRole `json:"role"`
	Content []ContentBlock  `json:"content"`
}

// AssistantMessage builds an assistant message holding a single text block.
func AssistantMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// UserMessage builds a user message holding a single text block.
func UserMessage(text string) ConversationMessage {
	return ConversationMessage{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// FirstText returns the text of the first text block, or "" when the message
// carries no text content.
func (m ConversationMessage) FirstText() string {
	return firstText(m.Content)
}

func firstText(blocks []ContentBlock) string {
	for _, b := range blocks {
		if b.Type == BlockText {
			return b.Text
		}
	}
	return ""
}

// --- Transport request/response ---

// Turn is one message in the transport payload. Text carries plain string
// content; when Blocks is non-empty it takes precedence and carries
// structured content (assistant tool_use turns, tool_result turns).
type Turn struct {
	Role   string         `json:"role"`
	Text   string         `json:"content,omitempty"`
	Blocks []ContentBlock `json:"blocks,omitempty"`
}

// ModelResponse is the transport's view of one model reply: an ordered
// sequence of content blocks plus usage accounting.
type ModelResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage"`
}

// HasToolUse reports whether any content block is a tool_use request.
func (r *ModelResponse) HasToolUse() bool {
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			return true
		}
	}
	return false
}

// ToolUses returns the tool_use blocks in order.
func (r *ModelResponse) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Usage counts tokens consumed by a transport round. The loop sums usage
// across rounds into the final result.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- Streaming ---

// StreamChunk is one element of the lazy streaming sequence: either an
// incremental text fragment (Text set, Final nil) or the terminal marker
// carrying the fully assembled final message (Final set). The emitted
// sequence is zero or more text chunks per round, repeated across rounds,
// followed by exactly one terminal chunk.
type StreamChunk struct {
	Text  string
	Final *ConversationMessage
}

// --- Prompt templating ---

// TemplateVariables maps placeholder names to substitution values. A value
// is either a string or a []string; slices are joined with newlines.
type TemplateVariables map[string]any
