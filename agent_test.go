package reef

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRespondSimple(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: textResponse("4", 10, 2)},
	}}

	agent, err := New("Math", "Answers math questions", transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "What is 2+2?"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.FirstText() != "4" {
		t.Errorf("FirstText() = %q, want %q", msg.FirstText(), "4")
	}
	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", msg.Role)
	}
	if transport.calls() != 1 {
		t.Errorf("transport calls = %d, want 1", transport.calls())
	}
}

func TestRespondWithToolRound(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: toolUseResponse("tu_1", "calculator", `{"expression":"2+2"}`)},
		{resp: textResponse("The answer is 4", 20, 5)},
	}}
	calc := &calcTool{}

	agent, err := New("Math", "Answers math questions", transport,
		&ToolConfig{Tool: NewToolRegistry(calc)})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "What is 2+2?"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.FirstText() != "The answer is 4" {
		t.Errorf("FirstText() = %q, want %q", msg.FirstText(), "The answer is 4")
	}
	if transport.calls() != 2 {
		t.Errorf("transport calls = %d, want 2", transport.calls())
	}
	if calc.executions != 1 {
		t.Errorf("tool executions = %d, want 1", calc.executions)
	}

	// Second round's payload carries the assistant tool_use turn and the
	// paired tool_result turn.
	second := transport.turns[1]
	if len(second) != 3 {
		t.Fatalf("second round has %d turns, want 3", len(second))
	}
	if second[1].Role != "assistant" || len(second[1].Blocks) == 0 || second[1].Blocks[0].Type != BlockToolUse {
		t.Errorf("turn 1 = %+v, want assistant tool_use turn", second[1])
	}
	if second[2].Role != "user" || len(second[2].Blocks) == 0 || second[2].Blocks[0].ToolUseID != "tu_1" {
		t.Errorf("turn 2 = %+v, want user tool_result turn paired to tu_1", second[2])
	}
}

func TestRespondBudgetExhausted(t *testing.T) {
	// The model keeps asking for tools. Budget 1 means one transport call
	// and one dispatch, then the loop stops without another call.
	transport := &mockTransport{rounds: []mockRound{
		{resp: toolUseResponse("tu_1", "calculator", `{}`)},
	}}
	calc := &calcTool{}

	agent, err := New("Math", "Answers math questions", transport,
		&ToolConfig{Tool: NewToolRegistry(calc), MaxRecursions: 1})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "Loop"})
	if err != nil {
		t.Fatal(err)
	}
	if transport.calls() != 1 {
		t.Errorf("transport calls = %d, want 1", transport.calls())
	}
	if calc.executions != 1 {
		t.Errorf("tool executions = %d, want 1", calc.executions)
	}
	// The last response carried no text block; truncation is silent.
	if msg.FirstText() != "" {
		t.Errorf("FirstText() = %q, want empty", msg.FirstText())
	}
}

func TestRespondDefaultBudget(t *testing.T) {
	// With no MaxRecursions set, a model that always wants tools gets
	// exactly five rounds.
	var rounds []mockRound
	for i := 0; i < 10; i++ {
		rounds = append(rounds, mockRound{resp: toolUseResponse("tu", "calculator", `{}`)})
	}
	transport := &mockTransport{rounds: rounds}
	calc := &calcTool{}

	agent, err := New("Math", "Answers math questions", transport,
		&ToolConfig{Tool: NewToolRegistry(calc)})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := agent.Respond(context.Background(), Request{Input: "Loop"}); err != nil {
		t.Fatal(err)
	}
	if transport.calls() != 5 {
		t.Errorf("transport calls = %d, want 5", transport.calls())
	}
	if calc.executions != 5 {
		t.Errorf("tool executions = %d, want 5", calc.executions)
	}
}

func TestRespondMixedTextAndToolUse(t *testing.T) {
	// Text alongside tool_use counts as a tool round; the interim text is
	// discarded.
	mixed := &ModelResponse{Content: []ContentBlock{
		TextBlock("Let me check that."),
		ToolUseBlock("tu_1", "calculator", json.RawMessage(`{}`)),
	}}
	transport := &mockTransport{rounds: []mockRound{
		{resp: mixed},
		{resp: textResponse("done", 0, 0)},
	}}

	agent, err := New("Math", "Answers math questions", transport,
		&ToolConfig{Tool: NewToolRegistry(&calcTool{})})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "check"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.FirstText() != "done" {
		t.Errorf("FirstText() = %q, want %q", msg.FirstText(), "done")
	}
	if transport.calls() != 2 {
		t.Errorf("transport calls = %d, want 2", transport.calls())
	}
}

func TestRespondToolUseWithoutTools(t *testing.T) {
	// A tool-free agent treats a tool_use response as final.
	transport := &mockTransport{rounds: []mockRound{
		{resp: toolUseResponse("tu_1", "ghost", `{}`)},
	}}

	agent, err := New("Chat", "A chat agent", transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if transport.calls() != 1 {
		t.Errorf("transport calls = %d, want 1", transport.calls())
	}
	if msg.FirstText() != "" {
		t.Errorf("FirstText() = %q, want empty", msg.FirstText())
	}
}

func TestRespondTransportError(t *testing.T) {
	wantErr := &ErrTransport{Provider: "mock", Err: errors.New("boom")}
	transport := &mockTransport{rounds: []mockRound{{err: wantErr}}}

	agent, err := New("Chat", "A chat agent", transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = agent.Respond(context.Background(), Request{Input: "hi"})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestRespondToolDispatchError(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: toolUseResponse("tu_1", "any", `{}`)},
	}}
	handler := func(_ context.Context, _ *ModelResponse, _ []Turn) (Turn, error) {
		return Turn{}, errors.New("handler broke")
	}

	agent, err := New("Chat", "A chat agent", transport,
		&ToolConfig{Tool: NewToolRegistry(&calcTool{}), Handler: handler})
	if err != nil {
		t.Fatal(err)
	}

	_, err = agent.Respond(context.Background(), Request{Input: "hi"})
	var dispatchErr *ErrToolDispatch
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("err = %v, want *ErrToolDispatch", err)
	}
	if dispatchErr.Unwrap() == nil || dispatchErr.Unwrap().Error() != "handler broke" {
		t.Errorf("unwrapped = %v, want handler broke", dispatchErr.Unwrap())
	}
}

func TestRespondWithHistory(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: textResponse("I remember", 0, 0)},
	}}

	agent, err := New("Chat", "A chat agent", transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	history := []ConversationMessage{
		UserMessage("my name is Ada"),
		AssistantMessage("Nice to meet you, Ada"),
	}
	if _, err := agent.Respond(context.Background(), Request{Input: "what is my name?", History: history}); err != nil {
		t.Fatal(err)
	}

	turns := transport.turns[0]
	if len(turns) != 3 {
		t.Fatalf("payload has %d turns, want 3", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "my name is Ada" {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Text != "Nice to meet you, Ada" {
		t.Errorf("turn 1 = %+v", turns[1])
	}
	if turns[2].Role != "user" || turns[2].Text != "what is my name?" {
		t.Errorf("turn 2 = %+v", turns[2])
	}
}

func TestRespondRetrieverSplice(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: textResponse("ok", 0, 0)},
	}}

	agent, err := New("Chat", "A chat agent", transport, nil,
		WithRetriever(stubRetriever{text: "Ada was born in 1815."}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := agent.Respond(context.Background(), Request{Input: "when was Ada born?"}); err != nil {
		t.Fatal(err)
	}

	system := transport.systems[0]
	if !strings.Contains(system, "Here is the context to use to answer the user's question:") {
		t.Errorf("system prompt missing retrieval header: %q", system)
	}
	if !strings.HasSuffix(system, "Ada was born in 1815.") {
		t.Errorf("system prompt missing retrieved text: %q", system)
	}
}

func TestRespondRetrieverError(t *testing.T) {
	transport := &mockTransport{}

	agent, err := New("Chat", "A chat agent", transport, nil,
		WithRetriever(stubRetriever{err: errors.New("index offline")}))
	if err != nil {
		t.Fatal(err)
	}

	_, err = agent.Respond(context.Background(), Request{Input: "hi"})
	if err == nil || !strings.Contains(err.Error(), "index offline") {
		t.Errorf("err = %v, want retrieve failure", err)
	}
	if transport.calls() != 0 {
		t.Errorf("transport calls = %d, want 0", transport.calls())
	}
}

func TestNewNilTransport(t *testing.T) {
	_, err := New("Chat", "A chat agent", nil, nil)
	var cfgErr *ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *ErrConfig", err)
	}
}

func TestNewToolListWithoutHandler(t *testing.T) {
	transport := &mockTransport{}
	_, err := New("Chat", "A chat agent", transport,
		&ToolConfig{Tool: []any{ToolDeclaration{Name: "raw"}}})
	var cfgErr *ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *ErrConfig", err)
	}
	if transport.calls() != 0 {
		t.Errorf("transport calls = %d, want 0", transport.calls())
	}
}

func TestToolListWithCustomHandler(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: toolUseResponse("tu_1", "raw", `{}`)},
		{resp: textResponse("handled", 0, 0)},
	}}
	var handled bool
	handler := func(_ context.Context, resp *ModelResponse, _ []Turn) (Turn, error) {
		handled = true
		return Turn{Role: "user", Blocks: []ContentBlock{ToolResultBlock("tu_1", "ok", false)}}, nil
	}

	agent, err := New("Chat", "A chat agent", transport, &ToolConfig{
		Tool:    []any{ToolDeclaration{Name: "raw"}, formatterTool{name: "fmt"}},
		Handler: handler,
	})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := agent.Respond(context.Background(), Request{Input: "go"})
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Error("custom handler was not invoked")
	}
	if msg.FirstText() != "handled" {
		t.Errorf("FirstText() = %q, want %q", msg.FirstText(), "handled")
	}
}

func TestSystemPromptOverride(t *testing.T) {
	transport := &mockTransport{rounds: []mockRound{
		{resp: textResponse("ok", 0, 0)},
	}}

	agent, err := New("Tech", "Technology expert", transport, nil,
		WithSystemPrompt("You are {{name}}, focused on {{topics}}.", TemplateVariables{
			"name":   "TechBot",
			"topics": []string{"AI", "networks"},
		}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := agent.Respond(context.Background(), Request{Input: "hi"}); err != nil {
		t.Fatal(err)
	}
	want := "You are TechBot, focused on AI\nnetworks."
	if transport.systems[0] != want {
		t.Errorf("system = %q, want %q", transport.systems[0], want)
	}
}

func TestAgentAccessors(t *testing.T) {
	agent, err := New("Math", "Answers math questions", &mockTransport{}, nil,
		WithStreaming(true))
	if err != nil {
		t.Fatal(err)
	}
	if agent.Name() != "Math" {
		t.Errorf("Name() = %q", agent.Name())
	}
	if agent.Description() != "Answers math questions" {
		t.Errorf("Description() = %q", agent.Description())
	}
	if !agent.Streaming() {
		t.Error("Streaming() = false, want true")
	}
}
