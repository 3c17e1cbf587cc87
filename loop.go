package reef

import (
	"context"
	"sync"
)

// --- Response strategy engine ---

// loopState is the state of one recursion loop run.
type loopState int

const (
	// stateAwaitingModel: the next step is a transport call.
	stateAwaitingModel loopState = iota
	// stateDispatchingTools: the last response requested tool use; the next
	// step appends the assistant turn, dispatches the bridge, and appends the
	// result turn.
	stateDispatchingTools
	// stateDone: the loop has produced its final message.
	stateDone
)

// runState threads the loop's mutable bookkeeping explicitly instead of
// relying on closures over outer-scope variables: the current state, the
// remaining recursion budget, and the last model response.
type runState struct {
	state           loopState
	roundsRemaining int
	pending         *ModelResponse
}

// runSingle executes the single-response strategy.
func (a *Agent) runSingle(ctx context.Context, payload *RequestPayload) (ConversationMessage, error) {
	return a.run(ctx, payload, nil)
}

// runStream executes the streaming strategy, forwarding text fragments into
// ch as they arrive and terminating the sequence with one final chunk.
func (a *Agent) runStream(ctx context.Context, payload *RequestPayload, ch chan<- StreamChunk) (ConversationMessage, error) {
	return a.run(ctx, payload, ch)
}

// run is the recursion loop shared by both strategies. When ch is nil it
// issues single transport calls; when ch is non-nil each round opens a
// stream instead, and text fragments are forwarded the moment they arrive.
// The transition rules are identical either way:
//
//   - AWAITING_MODEL: invoke the transport with the current payload.
//   - Tool-use block present: append the assistant's raw content, dispatch
//     the bridge once, append its result turn, decrement the budget, and
//     return to AWAITING_MODEL while budget remains.
//   - No tool-use block, or budget exhausted: DONE; the final message is
//     built from the first text block of the last response.
//
// A response mixing tool-use and text counts as a tool round: the text is
// discarded and only the last round's leading text block is surfaced. When
// the budget runs out while the model still wants tools, whatever text the
// last response carries (possibly none) is returned without error.
func (a *Agent) run(ctx context.Context, payload *RequestPayload, ch chan<- StreamChunk) (ConversationMessage, error) {
	// Close ch exactly once, on every exit path. Guards against a transport
	// that misbehaves and closes the consumer channel itself.
	var closeOnce sync.Once
	safeClose := func() {
		if ch != nil {
			closeOnce.Do(func() {
				defer func() { recover() }()
				close(ch)
			})
		}
	}

	var emit func(text string)
	if ch != nil {
		emit = func(text string) {
			a.notifyToken(text)
			select {
			case ch <- StreamChunk{Text: text}:
			case <-ctx.Done():
			}
		}
	}

	var totalUsage Usage
	st := runState{state: stateAwaitingModel, roundsRemaining: a.maxRecursions()}

	for st.state != stateDone {
		switch st.state {
		case stateAwaitingModel:
			var resp *ModelResponse
			var err error
			if ch != nil {
				resp, err = a.transport.Stream(ctx, payload, emit)
			} else {
				resp, err = a.transport.Send(ctx, payload)
			}
			if err != nil {
				a.logger.Error("transport call failed",
					"agent", a.name,
					"provider", a.transport.Name(),
					"error", err)
				safeClose()
				return ConversationMessage{}, err
			}
			totalUsage.InputTokens += resp.Usage.InputTokens
			totalUsage.OutputTokens += resp.Usage.OutputTokens
			st.pending = resp

			if resp.HasToolUse() && a.tools != nil {
				st.state = stateDispatchingTools
			} else {
				st.state = stateDone
			}

		case stateDispatchingTools:
			payload.Messages = append(payload.Messages, Turn{Role: "assistant", Blocks: st.pending.Content})
			toolTurn, err := a.tools.dispatch(ctx, a.transport.Name(), st.pending, payload.Messages)
			if err != nil {
				a.logger.Error("tool dispatch failed",
					"agent", a.name,
					"error", err)
				safeClose()
				return ConversationMessage{}, &ErrToolDispatch{Err: err}
			}
			payload.Messages = append(payload.Messages, toolTurn)

			st.roundsRemaining--
			if st.roundsRemaining > 0 {
				st.state = stateAwaitingModel
			} else {
				st.state = stateDone
			}
		}
	}

	final := AssistantMessage(firstText(st.pending.Content))
	a.logger.Debug("loop completed",
		"agent", a.name,
		"tokens.input", totalUsage.InputTokens,
		"tokens.output", totalUsage.OutputTokens)

	if ch != nil {
		select {
		case ch <- StreamChunk{Final: &final}:
		case <-ctx.Done():
			safeClose()
			return final, ctx.Err()
		}
	}
	safeClose()
	return final, nil
}

// closeChunks closes the chunk channel when streaming setup fails before the
// loop starts, so consumers never block on an abandoned channel.
func closeChunks(ch chan<- StreamChunk) {
	if ch != nil {
		close(ch)
	}
}
