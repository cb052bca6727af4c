// Package agent implements QAAgent, the long-lived question-answering agent
// the synchronous bridge drives. It combines a model provider, MCP-discovered
// tools and a session-scoped conversation checkpoint.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/logging"
	"github.com/hupe1980/agentbridge/mcp"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/model/anthropic"
	"github.com/hupe1980/agentbridge/model/openai"
	"github.com/hupe1980/agentbridge/session"
	"github.com/hupe1980/agentbridge/tool"
)

// Options configures a QAAgent beyond its Config.
type Options struct {
	// Model overrides the provider selected from the config (useful for tests).
	Model model.Model
	// Client overrides the MCP client built from the config's mcp_url.
	Client *mcp.Client
	// Store supplies the session checkpoint store; defaults to a fresh in-memory store.
	Store *session.InMemoryStore
	// Prompt replaces the default system prompt.
	Prompt Prompt
	// MaxToolRounds bounds the generate/execute loop of one Answer call.
	MaxToolRounds int
	// Logger receives diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// QAAgent answers user questions with a bounded model/tool-calling loop and
// checkpoints every completed turn. It is driven by the bridge's executor and
// is not safe for concurrent use.
type QAAgent struct {
	cfg           config.Config
	llm           model.Model
	client        *mcp.Client
	tools         []core.Tool
	toolIndex     map[string]core.Tool
	buffer        *session.Buffer
	store         *session.InMemoryStore
	prompt        Prompt
	maxToolRounds int
	logger        logging.Logger
	ready         bool
}

// New constructs a QAAgent. No I/O happens until Setup.
func New(cfg config.Config, optFns ...func(o *Options)) *QAAgent {
	opts := Options{
		Store:         session.NewInMemoryStore(),
		Prompt:        DefaultPrompt(),
		MaxToolRounds: 8,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &QAAgent{
		cfg:           cfg,
		llm:           opts.Model,
		client:        opts.Client,
		store:         opts.Store,
		prompt:        opts.Prompt,
		maxToolRounds: opts.MaxToolRounds,
		logger:        opts.Logger,
		toolIndex:     make(map[string]core.Tool),
	}
}

// Setup initializes the model client, verifies the MCP connection, discovers
// tools and binds the session checkpoint. It implements core.Agent.
func (a *QAAgent) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}

	if a.llm == nil {
		llm, err := a.buildModel()
		if err != nil {
			return err
		}
		a.llm = llm
	}

	if a.client == nil && a.cfg.MCPURL != "" {
		a.client = mcp.NewClient(a.cfg.MCPURL, func(o *mcp.Options) {
			o.Logger = a.logger
		})
	}

	if a.client != nil {
		if err := a.client.Initialize(ctx); err != nil {
			var connErr *mcp.ConnectionError
			if errors.As(err, &connErr) {
				return fmt.Errorf("failed to connect to MCP server: %w", err)
			}
			return err
		}
		defs, err := a.client.ListTools(ctx)
		if err != nil {
			return fmt.Errorf("failed to list MCP tools: %w", err)
		}
		for _, def := range defs {
			a.RegisterTool(tool.NewMCPTool(a.client, def))
		}
		a.logger.Info("agent.setup.tools", "count", len(defs))
	}

	// Chart generation is always available, with or without an MCP server.
	a.RegisterTool(tool.NewQuickChartTool())

	a.buffer = a.store.Get(a.cfg.SessionID)
	a.ready = true

	a.logger.Info("agent.setup.complete",
		"provider", a.llm.Info().Provider,
		"model", a.llm.Info().Name,
		"session_id", a.cfg.SessionID,
	)
	return nil
}

// buildModel selects a provider from the configuration.
func (a *QAAgent) buildModel() (model.Model, error) {
	switch a.cfg.Provider {
	case "anthropic", "":
		if a.cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic api key is required for anthropic models")
		}
		return anthropic.NewModel(func(o *anthropic.Options) {
			if a.cfg.Model != "" {
				o.Model = a.cfg.Model
			}
			o.APIKey = a.cfg.AnthropicAPIKey
		}), nil
	case "openai":
		if a.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key is required for openai models")
		}
		return openai.NewModel(func(o *openai.Options) {
			if a.cfg.Model != "" {
				o.Model = a.cfg.Model
			}
			o.APIKey = a.cfg.OpenAIAPIKey
		}), nil
	case "mock":
		return model.NewMockModel(a.cfg.Model, "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", a.cfg.Provider)
	}
}

// RegisterTool adds a tool to the agent's capability set.
func (a *QAAgent) RegisterTool(t core.Tool) {
	if _, exists := a.toolIndex[t.Name()]; !exists {
		a.tools = append(a.tools, t)
	}
	a.toolIndex[t.Name()] = t
}

// Answer processes one user question to completion. Model failures degrade to
// a structured fallback response with Success=false rather than an error;
// errors are reserved for calling the agent before Setup or a cancelled
// context. It implements core.Agent.
func (a *QAAgent) Answer(ctx context.Context, question string) (core.Answer, error) {
	if !a.ready {
		return core.Answer{}, fmt.Errorf("agent not initialized, call Setup first")
	}

	a.logger.Info("agent.answer.start", "question_len", len(question))
	a.buffer.Append(core.NewUserMessage(question))

	contents := a.historyContents()
	defs := a.toolDefinitions()
	var toolsUsed []string

	for round := 0; round < a.maxToolRounds; round++ {
		resp, err := a.llm.Generate(ctx, model.Request{
			Instructions: a.prompt.Text,
			Contents:     contents,
			Tools:        defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return core.Answer{}, ctx.Err()
			}
			a.logger.Error("agent.answer.model_error", "error", err.Error())
			return core.Answer{
				Success:  false,
				Response: fallbackResponse(question, err),
				Metadata: map[string]any{"error": err.Error()},
			}, nil
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Content.Text()
			if text == "" {
				text = "No response generated"
			}
			metadata := map[string]any{
				"question":   question,
				"session_id": a.cfg.SessionID,
				"model":      a.llm.Info().Name,
				"provider":   a.llm.Info().Provider,
				"tools_used": toolsUsed,
			}
			a.buffer.Append(core.NewAssistantMessage(text, metadata))
			a.logger.Info("agent.answer.complete", "response_len", len(text), "tool_rounds", round)
			return core.Answer{Success: true, Response: text, Metadata: metadata}, nil
		}

		contents = append(contents, resp.Content)
		contents = append(contents, a.executeCalls(ctx, calls, &toolsUsed))
	}

	err := fmt.Errorf("exceeded maximum tool rounds (%d)", a.maxToolRounds)
	return core.Answer{
		Success:  false,
		Response: fallbackResponse(question, err),
		Metadata: map[string]any{"error": err.Error()},
	}, nil
}

// executeCalls runs the requested tools and assembles their responses as one
// tool-role content turn.
func (a *QAAgent) executeCalls(ctx context.Context, calls []core.FunctionCall, toolsUsed *[]string) core.Content {
	parts := make([]core.Part, 0, len(calls))
	for _, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		fr := core.FunctionResponse{ID: call.ID, Name: call.Name}

		t, exists := a.toolIndex[call.Name]
		if !exists {
			fr.Error = fmt.Sprintf("tool %s not found", call.Name)
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
			continue
		}

		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				fr.Error = fmt.Sprintf("failed to unmarshal args: %v", err)
				parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
				continue
			}
		}

		result, err := t.Call(ctx, args)
		if err != nil {
			a.logger.Warn("agent.tool.error", "tool", call.Name, "error", err.Error())
			fr.Error = err.Error()
		} else {
			fr.Response = result
			*toolsUsed = append(*toolsUsed, call.Name)
		}
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	return core.Content{Role: "tool", Parts: parts}
}

// historyContents converts the checkpointed conversation into model contents.
func (a *QAAgent) historyContents() []core.Content {
	msgs := a.buffer.Messages()
	contents := make([]core.Content, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, core.Content{
			Role:  m.Kind.String(),
			Parts: []core.Part{core.TextPart{Text: m.Text}},
		})
	}
	return contents
}

// toolDefinitions exposes the registered tools to the model.
func (a *QAAgent) toolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.tools))
	for _, t := range a.tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// fallbackResponse renders a helpful JSON payload when answering failed.
func fallbackResponse(question string, err error) string {
	payload := map[string]any{
		"error": err.Error(),
	}
	lower := strings.ToLower(question)
	if strings.Contains(lower, "chart") || strings.Contains(lower, "graph") ||
		strings.Contains(lower, "plot") || strings.Contains(lower, "visualiz") {
		payload["text"] = "I encountered an error while trying to create a chart. Please try rephrasing " +
			"your request or ensure you've first retrieved the data you want to visualize."
		payload["suggestion"] = "Try asking for data first, then request a chart of that specific data."
	} else {
		payload["text"] = fmt.Sprintf("I encountered an error while processing your question: %v", err)
		payload["suggestion"] = "Please try rephrasing your question or check if the data server is accessible."
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return fmt.Sprintf("Error processing question: %v", err)
	}
	return string(data)
}

// History returns a snapshot of the conversation so far. It implements core.Agent.
func (a *QAAgent) History() []core.Message {
	if a.buffer == nil {
		return nil
	}
	return a.buffer.Messages()
}

// Tools returns the registered tools. It implements core.Agent.
func (a *QAAgent) Tools() []core.Tool {
	tools := make([]core.Tool, len(a.tools))
	copy(tools, a.tools)
	return tools
}

// Info reports the agent's self-described configuration. It implements core.Agent.
func (a *QAAgent) Info() map[string]any {
	names := make([]string, 0, len(a.tools))
	for _, t := range a.tools {
		names = append(names, t.Name())
	}
	status := "not_initialized"
	if a.ready {
		status = "ready"
	}
	info := map[string]any{
		"mcp_url":     a.cfg.MCPURL,
		"session_id":  a.cfg.SessionID,
		"tools_count": len(a.tools),
		"tools":       names,
		"status":      status,
		"prompt":      a.prompt.VersionInfo(),
	}
	if a.llm != nil {
		info["model"] = a.llm.Info().Name
		info["provider"] = a.llm.Info().Provider
	}
	return info
}

// Clear discards the conversation history. It implements core.Agent.
func (a *QAAgent) Clear() {
	if a.buffer != nil {
		a.buffer.Clear()
	}
}

// Save writes the conversation history to the given path. It implements core.Agent.
func (a *QAAgent) Save(path string) error {
	if a.buffer == nil {
		return fmt.Errorf("no conversation to save")
	}
	return a.buffer.Save(path)
}

// Client exposes the lower-level MCP client for advanced callers.
func (a *QAAgent) Client() *mcp.Client {
	return a.client
}
