package core

// MessageKind discriminates the variant of a conversation message record.
// The kind is decided once at construction and never re-derived from the
// runtime shape of the record.
type MessageKind int

const (
	// KindUser marks a message originating from the end user.
	KindUser MessageKind = iota
	// KindAssistant marks a message produced by the agent.
	KindAssistant
	// KindSystem marks instructions or any other non-conversational record.
	KindSystem
)

// String returns the wire role tag for the kind.
func (k MessageKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	default:
		return "system"
	}
}

// Message is one turn of conversation: a kind tag, plain text, and an opaque
// metadata map the agent may attach (tool-call artifacts, model info, etc.).
// Messages are value types; treat them as immutable after construction.
type Message struct {
	Kind     MessageKind    `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewUserMessage creates a user-originated message record.
func NewUserMessage(text string) Message {
	return Message{Kind: KindUser, Text: text}
}

// NewAssistantMessage creates an agent-originated message record with optional metadata.
func NewAssistantMessage(text string, metadata map[string]any) Message {
	return Message{Kind: KindAssistant, Text: text, Metadata: metadata}
}

// NewSystemMessage creates a system message record.
func NewSystemMessage(text string) Message {
	return Message{Kind: KindSystem, Text: text}
}
