package reef

// buildConversation converts stored history plus the new input into the
// ordered turn list the transport expects. Each historical message is
// flattened to its first text block, so multi-block messages lose non-text
// content here. Keep that unless the transport grows a need for full-block
// history; a change would alter what the model sees mid-session.
func buildConversation(history []ConversationMessage, input string) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for _, msg := range history {
		role := "assistant"
		if msg.Role == RoleUser {
			role = "user"
		}
		turns = append(turns, Turn{Role: role, Text: msg.FirstText()})
	}
	return append(turns, Turn{Role: "user", Text: input})
}
