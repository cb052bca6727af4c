package core

import "context"

// Answer is the structured result of one question/answer turn. Success is
// false when the agent degraded to a fallback response; in that case Response
// still carries human-readable text.
type Answer struct {
	Success  bool           `json:"success"`
	Response string         `json:"response"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Agent is the asynchronous collaborator the bridge drives. All blocking
// methods take a context and must only ever be invoked from the bridge's
// executor; implementations are not required to be safe for concurrent use.
//
// Contract:
//   - Setup strictly precedes any Answer call
//   - History returns a snapshot; callers must not mutate the returned slice
//   - Clear and Save are best-effort maintenance operations
type Agent interface {
	// Setup initializes the agent (model client, tool discovery, memory).
	Setup(ctx context.Context) error

	// Answer processes one user question to completion and returns the
	// agent's response. History accumulation is the agent's responsibility.
	Answer(ctx context.Context, question string) (Answer, error)

	// History returns a snapshot of the full conversation so far.
	History() []Message

	// Tools returns the tools currently exposed by the agent.
	Tools() []Tool

	// Info reports the agent's self-described configuration.
	Info() map[string]any

	// Clear discards the conversation history.
	Clear()

	// Save writes the conversation history to the given path.
	Save(path string) error
}
