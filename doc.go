// Package agentbridge provides a synchronous, blocking call surface over an
// asynchronous question-answering agent. A Bridge lazily constructs its agent
// exactly once, binds it to a dedicated single-threaded executor, and runs
// every subsequent agent operation on that same executor so the agent's
// internal state is only ever driven from one thread at a time.
//
// Typical usage from a synchronous caller (e.g. a chat-bot event handler):
//
//	bridge := agentbridge.New(map[string]any{
//	    "llm_provider": "anthropic",
//	    "llm_model":    "claude-3-5-sonnet",
//	    "mcp_url":      "http://localhost:4040/mcp",
//	})
//	defer bridge.Close()
//
//	ok, response, history := bridge.ProcessUserQuestion("What is 2+2?", nil)
//
// ProcessUserQuestion never panics or returns an error; every failure mode
// (setup failure, timeout, model error) is converted into the (ok, response,
// history) result with a human-readable message. A Bridge serializes its
// public operations internally; overlapping calls from multiple goroutines
// are safe but executed one at a time.
package agentbridge
