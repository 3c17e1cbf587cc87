package reef

import (
	"context"
	"encoding/json"
	"errors"
)

// --- Transport mocks ---

// mockRound scripts one transport call: the response or error to return and,
// for streaming calls, the text fragments to emit before returning.
type mockRound struct {
	resp      *ModelResponse
	err       error
	fragments []string
}

// mockTransport is a test Transport that replays scripted rounds in order.
type mockTransport struct {
	rounds  []mockRound
	idx     int
	sends   int
	streams int
	systems []string
	turns   [][]Turn
}

func (m *mockTransport) Name() string { return "mock" }

func (m *mockTransport) Send(_ context.Context, req *RequestPayload) (*ModelResponse, error) {
	m.sends++
	m.record(req)
	r := m.next()
	return r.resp, r.err
}

func (m *mockTransport) Stream(_ context.Context, req *RequestPayload, emit func(text string)) (*ModelResponse, error) {
	m.streams++
	m.record(req)
	r := m.next()
	if r.err != nil {
		return nil, r.err
	}
	for _, f := range r.fragments {
		emit(f)
	}
	return r.resp, nil
}

func (m *mockTransport) record(req *RequestPayload) {
	m.systems = append(m.systems, req.System)
	turns := make([]Turn, len(req.Messages))
	copy(turns, req.Messages)
	m.turns = append(m.turns, turns)
}

func (m *mockTransport) next() mockRound {
	if m.idx >= len(m.rounds) {
		return mockRound{resp: textResponse("exhausted", 0, 0)}
	}
	r := m.rounds[m.idx]
	m.idx++
	return r
}

func (m *mockTransport) calls() int { return m.sends + m.streams }

func textResponse(text string, in, out int) *ModelResponse {
	return &ModelResponse{
		Content:    []ContentBlock{TextBlock(text)},
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: in, OutputTokens: out},
	}
}

func toolUseResponse(id, name, args string) *ModelResponse {
	return &ModelResponse{
		Content:    []ContentBlock{ToolUseBlock(id, name, json.RawMessage(args))},
		StopReason: "tool_use",
	}
}

// --- Tool mocks ---

type calcTool struct {
	executions int
}

func (c *calcTool) Definitions() []ToolDeclaration {
	return []ToolDeclaration{{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}},"required":["expression"]}`),
	}}
}

func (c *calcTool) Execute(_ context.Context, name string, _ json.RawMessage) (ToolResult, error) {
	c.executions++
	return ToolResult{Content: "4"}, nil
}

type errTool struct{}

func (errTool) Definitions() []ToolDeclaration {
	return []ToolDeclaration{{Name: "fail", Description: "Always fails"}}
}

func (errTool) Execute(_ context.Context, _ string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{}, errors.New("tool broken")
}

type multiTool struct{}

func (multiTool) Definitions() []ToolDeclaration {
	return []ToolDeclaration{
		{Name: "read", Description: "Read file"},
		{Name: "write", Description: "Write file"},
	}
}

func (multiTool) Execute(_ context.Context, name string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: "did " + name}, nil
}

// formatterTool satisfies ClaudeFormatter for list-shaped tool config tests.
type formatterTool struct {
	name string
}

func (f formatterTool) ToClaudeFormat() ToolDeclaration {
	return ToolDeclaration{Name: f.name, Description: "formatted"}
}

// --- Retriever mocks ---

type stubRetriever struct {
	text string
	err  error
}

func (s stubRetriever) Retrieve(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}
