// Package reef is a conversational-agent adapter that drives an LLM API
// through a bounded tool-use recursion loop, in both single-shot and
// streaming modes.
//
// # Quick Start
//
// Create an agent backed by the Anthropic transport:
//
//	transport, err := anthropic.New(apiKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	agent, err := reef.New("tech-agent", "Answers technical questions", transport,
//		&reef.ToolConfig{Tool: registry, MaxRecursions: 5},
//		reef.WithModel("claude-3-5-sonnet-20240620"),
//	)
//
//	msg, err := agent.Respond(ctx, reef.Request{Input: "What is 2+2?"})
//
// For streaming, consume chunks from a channel while the loop runs:
//
//	ch := make(chan reef.StreamChunk)
//	go func() {
//		for chunk := range ch {
//			fmt.Print(chunk.Text)
//		}
//	}()
//	msg, err := agent.RespondStream(ctx, req, ch)
//
// # Core Interfaces
//
// The root package defines the contracts the loop depends on:
//
//   - [Transport] — the LLM backend (single call and streaming)
//   - [Tool] — a capability the model may invoke via tool use
//   - [Retriever] — free-text context retrieval spliced into the system prompt
//   - [Storage] — conversation history persistence
//
// Implementations live in subpackages: provider/anthropic (Transport),
// store/sqlite and store/postgres (Storage), observer (OTEL instrumentation).
package reef
