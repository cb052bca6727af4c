// Package history converts between the agent's structured conversation
// message records and a transport-neutral list-of-maps representation used by
// callers of the synchronous bridge.
package history

import "github.com/hupe1980/agentbridge/core"

// Content is the nested payload of one encoded history entry.
type Content struct {
	Content          string         `json:"content"`
	AdditionalKwargs map[string]any `json:"additional_kwargs"`
}

// Message is the transport form of one conversation turn.
type Message struct {
	Role    string  `json:"role"` // user, assistant or system
	Content Content `json:"content"`
}

// Encode serializes message records to the transport form, order preserved.
// User and assistant records keep their wire role; every other kind is tagged
// "system".
func Encode(msgs []core.Message) []Message {
	encoded := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		encoded = append(encoded, Message{
			Role: m.Kind.String(),
			Content: Content{
				Content:          m.Text,
				AdditionalKwargs: m.Metadata,
			},
		})
	}
	return encoded
}

// Decode deserializes transport entries back into message records. Entries
// with a role other than "user" or "assistant" are silently dropped, so the
// output may be shorter than the input. Metadata is restored for assistant
// records only; user records come back without it.
func Decode(entries []Message) []core.Message {
	decoded := make([]core.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case "user":
			decoded = append(decoded, core.NewUserMessage(e.Content.Content))
		case "assistant":
			decoded = append(decoded, core.NewAssistantMessage(e.Content.Content, e.Content.AdditionalKwargs))
		}
	}
	return decoded
}
