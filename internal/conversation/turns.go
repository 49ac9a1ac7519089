package conversation

// AssembleTurns reconstructs logical turns from an ordered message list.
//
// A turn opens at each user message and consumes every assistant message
// that immediately follows it, up to the next user message or the end of
// the list. Tool invocations from EVERY assistant message in that span
// are accumulated in call order — not just the final one, which is how
// multi-step tool chains keep their intermediate calls. The last
// assistant message in the span with non-empty content supplies the
// final reply and the turn's timestamp.
//
// A span that never produced a non-empty assistant reply is considered
// in-flight and is not emitted; its raw messages remain visible to
// message-level retrieval. Leading assistant or system messages before
// the first user message never start a turn.
//
// The function is pure: same input, same output, no shared state.
func AssembleTurns(messages []Message) []Turn {
	var turns []Turn

	i := 0
	for i < len(messages) {
		if messages[i].Role != RoleUser {
			i++
			continue
		}

		user := messages[i]
		var tools []ToolInvocation
		var finalReply string
		finalAt := user.Timestamp
		ids := []string{user.ID}

		j := i + 1
		for j < len(messages) && messages[j].Role == RoleAssistant {
			m := messages[j]
			ids = append(ids, m.ID)
			for _, tc := range m.ToolCalls {
				if tc.Name == "" {
					tc.Name = "unknown"
				}
				tools = append(tools, tc)
			}
			if m.Content != "" {
				finalReply = m.Content
				finalAt = m.Timestamp
			}
			j++
		}

		if finalReply != "" {
			turns = append(turns, Turn{
				Index:          len(turns),
				UserMessage:    user,
				AssistantReply: finalReply,
				ToolCalls:      tools,
				Timestamp:      finalAt,
				MessageIDs:     ids,
			})
		}

		i = j
	}

	return turns
}
