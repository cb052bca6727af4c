package agentbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/agentbridge/agent"
	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/history"
	"github.com/hupe1980/agentbridge/internal/util"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/mcp"
)

// unknownValue is reported for configuration fields the caller never supplied.
const unknownValue = "unknown"

// AgentFactory constructs the agent from the parsed configuration. It runs on
// the bridge's executor, as does the subsequent Setup call.
type AgentFactory func(cfg config.Config, logger logging.Logger) (core.Agent, error)

// ToolDescriptor is the structured description of one agent tool.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Options configures a Bridge.
type Options struct {
	// Logger receives diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// AgentFactory overrides the default QAAgent constructor (useful for tests).
	AgentFactory AgentFactory
}

// Bridge exposes a synchronous call surface over an asynchronous agent.
//
// The agent and its executor are created lazily on first use and reused for
// the Bridge's lifetime. A mutex serializes all public operations: two
// overlapping ProcessUserQuestion calls never race for the executor, they
// queue. The zero value is not usable; construct with New.
type Bridge struct {
	mu      sync.Mutex
	raw     map[string]any // construction map, stored verbatim
	cfg     config.Config
	logger  logging.Logger
	factory AgentFactory

	// Populated exactly once by ensureReadyLocked.
	exec  *Executor
	agent core.Agent
}

// New creates a Bridge. The configuration map is captured verbatim; neither
// the agent nor the executor are constructed until the first call that needs
// them.
func New(configuration map[string]any, optFns ...func(o *Options)) *Bridge {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	factory := opts.AgentFactory
	if factory == nil {
		factory = func(cfg config.Config, logger logging.Logger) (core.Agent, error) {
			return agent.New(cfg, func(o *agent.Options) { o.Logger = logger }), nil
		}
	}

	return &Bridge{
		raw:     configuration,
		cfg:     config.FromMap(configuration),
		logger:  opts.Logger,
		factory: factory,
	}
}

// EnsureReady constructs the agent and its executor if they do not exist yet.
// Calling it again is a no-op. On failure the partially created executor is
// closed before the error is returned, so a later call starts clean.
func (b *Bridge) EnsureReady() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureReadyLocked()
}

func (b *Bridge) ensureReadyLocked() error {
	if b.agent != nil {
		return nil
	}

	b.logger.Info("bridge.setup.start", "provider", b.cfg.Provider, "model", b.cfg.Model)

	exec := NewExecutor(b.logger)

	var built core.Agent
	err := exec.Do("agent setup", b.cfg.SetupTimeout, func(ctx context.Context) error {
		a, err := b.factory(b.cfg, b.logger)
		if err != nil {
			return err
		}
		if err := a.Setup(ctx); err != nil {
			return err
		}
		built = a
		return nil
	})
	if err != nil {
		exec.Close()
		b.logger.Error("bridge.setup.failed", "error", err.Error())
		return &InitError{Err: err}
	}

	b.agent = built
	b.exec = exec
	b.logger.Info("bridge.setup.complete", "executor_id", exec.ID())
	return nil
}

// ProcessUserQuestion answers one user question synchronously.
//
// The prior history parameter is accepted for caller compatibility but not
// forwarded: the agent checkpoints its own conversation internally. The
// returned history is the agent's full conversation snapshot after this turn.
//
// This method never panics and never returns an error value; every failure
// (lazy setup, timeout, agent error) yields ok=false with a human-readable
// message and an empty history.
func (b *Bridge) ProcessUserQuestion(question string, prior []history.Message) (bool, string, []history.Message) {
	_ = prior

	b.mu.Lock()
	defer b.mu.Unlock()

	if question == "" {
		return false, "Error in agent processing: question must not be empty", []history.Message{}
	}

	if err := b.ensureReadyLocked(); err != nil {
		return false, fmt.Sprintf("Error in agent processing: %v", err), []history.Message{}
	}

	var ans core.Answer
	var msgs []core.Message
	err := b.exec.Do("question processing", b.cfg.AnswerTimeout, func(ctx context.Context) error {
		a, err := b.agent.Answer(ctx, question)
		if err != nil {
			return &AnswerError{Err: err}
		}
		ans = a
		msgs = b.agent.History()
		return nil
	})
	if err != nil {
		b.logger.Error("bridge.question.failed", "error", err.Error())
		return false, fmt.Sprintf("Error in agent processing: %v", err), []history.Message{}
	}

	return ans.Success, ans.Response, history.Encode(msgs)
}

// ListTools describes the tools exposed by the agent. Before the agent exists
// it returns an empty slice rather than triggering setup.
func (b *Bridge) ListTools() []ToolDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent == nil {
		return []ToolDescriptor{}
	}

	tools := b.agent.Tools()
	descriptors := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		descriptors = append(descriptors, ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  util.NormalizeSchema(t.Parameters()),
		})
	}
	return descriptors
}

// CallTool invokes a named tool directly, bypassing the model. All failures
// are rendered as descriptive strings, never raised.
func (b *Bridge) CallTool(name string, args map[string]any) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent == nil {
		return "Error: LangChain agent not initialized"
	}

	var found core.Tool
	for _, t := range b.agent.Tools() {
		if t.Name() == name {
			found = t
			break
		}
	}
	if found == nil {
		return fmt.Sprintf("Error: Tool '%s' not found", name)
	}

	result, err := found.Call(context.Background(), args)
	if err != nil {
		return fmt.Sprintf("Error calling tool %s: %v", name, err)
	}

	if m, ok := result.(map[string]any); ok {
		if data, err := json.MarshalIndent(m, "", "  "); err == nil {
			return string(data)
		}
	}
	if s, ok := result.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", result)
}

// Info reports the adapter configuration plus, once the agent exists,
// whatever the agent self-reports.
func (b *Bridge) Info() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := map[string]any{
		"adapter_type":      "LangChain",
		"llm_provider":      orUnknown(b.cfg.Provider),
		"llm_model":         orUnknown(b.cfg.Model),
		"mcp_url":           orUnknown(b.cfg.MCPURL),
		"setup_complete":    b.agent != nil,
		"vertex_project_id": nilIfEmpty(b.cfg.VertexProjectID),
		"vertex_location":   nilIfEmpty(b.cfg.VertexLocation),
	}

	if b.agent != nil {
		for k, v := range b.agent.Info() {
			info[k] = v
		}
	}
	return info
}

// ClearConversation discards the agent's conversation history. It is a no-op
// before the agent exists.
func (b *Bridge) ClearConversation() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent == nil {
		return
	}
	b.agent.Clear()
}

// SaveConversation writes the conversation history to a file. Failures are
// logged and swallowed; it is a no-op before the agent exists.
func (b *Bridge) SaveConversation(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent == nil {
		return
	}
	if err := b.agent.Save(path); err != nil {
		b.logger.Warn("bridge.save_conversation.failed", "path", path, "error", err.Error())
	}
}

// BackingClient exposes the agent's lower-level MCP client for advanced
// callers, or nil when the agent does not exist or does not carry one.
func (b *Bridge) BackingClient() *mcp.Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent == nil {
		return nil
	}
	if provider, ok := b.agent.(interface{ Client() *mcp.Client }); ok {
		return provider.Client()
	}
	return nil
}

// Close shuts the executor down. The agent handle is dropped with the Bridge;
// Close is idempotent and safe on a never-readied Bridge.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exec != nil {
		b.exec.Close()
	}
}

func orUnknown(v string) string {
	if v == "" {
		return unknownValue
	}
	return v
}

func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
