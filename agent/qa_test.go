package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbridge/config"
	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/model"
	"github.com/hupe1980/agentbridge/tool"
)

// Interface compliance (compile-time assertion)
var _ core.Agent = (*QAAgent)(nil)

// scriptedModel replays a fixed sequence of responses and records requests,
// enabling tool-call loop tests the plain MockModel cannot drive.
type scriptedModel struct {
	responses []model.Response
	requests  []model.Request
	err       error
}

func (s *scriptedModel) Generate(_ context.Context, req model.Request) (model.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return model.Response{}, s.err
	}
	if len(s.responses) == 0 {
		return model.Response{}, errors.New("script exhausted")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

func textResponse(text string) model.Response {
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func mockConfig() config.Config {
	return config.FromMap(map[string]any{"llm_provider": "mock", "llm_model": "mock-1"})
}

func TestQAAgent_AnswerBeforeSetup(t *testing.T) {
	a := New(mockConfig())

	_, err := a.Answer(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestQAAgent_AnswerAndHistory(t *testing.T) {
	mock := model.NewMockModel("mock-1", "mock")
	mock.AddResponse("What is 2+2?", "2+2 equals 4.")

	a := New(mockConfig(), func(o *Options) { o.Model = mock })
	require.NoError(t, a.Setup(context.Background()))

	ans, err := a.Answer(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.True(t, ans.Success)
	assert.Equal(t, "2+2 equals 4.", ans.Response)
	assert.Equal(t, "mock", ans.Metadata["provider"])

	msgs := a.History()
	require.Len(t, msgs, 2)
	assert.Equal(t, core.KindUser, msgs[0].Kind)
	assert.Equal(t, "What is 2+2?", msgs[0].Text)
	assert.Equal(t, core.KindAssistant, msgs[1].Kind)
	assert.Equal(t, "2+2 equals 4.", msgs[1].Text)

	// Second turn accumulates.
	_, err = a.Answer(context.Background(), "And 3+3?")
	require.NoError(t, err)
	assert.Len(t, a.History(), 4)
}

func TestQAAgent_ToolCallLoop(t *testing.T) {
	script := &scriptedModel{responses: []model.Response{
		{
			Content: core.Content{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        "call-1",
					Name:      "execute_query",
					Arguments: `{"query":"flights -> by_carrier"}`,
				}},
			}},
			FinishReason: "tool_calls",
		},
		textResponse("WN flew the most flights."),
	}}

	var gotArgs map[string]any
	queryTool := tool.NewFunctionTool(
		"execute_query",
		"Run a query",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			gotArgs = args
			return "carrier,count\nWN,344827", nil
		},
	)

	a := New(mockConfig(), func(o *Options) { o.Model = script })
	require.NoError(t, a.Setup(context.Background()))
	a.RegisterTool(queryTool)

	ans, err := a.Answer(context.Background(), "Which carrier flew the most?")
	require.NoError(t, err)
	assert.True(t, ans.Success)
	assert.Equal(t, "WN flew the most flights.", ans.Response)
	assert.Equal(t, []string{"execute_query"}, ans.Metadata["tools_used"])
	assert.Equal(t, map[string]any{"query": "flights -> by_carrier"}, gotArgs)

	// The second model request carries the tool call and its response.
	require.Len(t, script.requests, 2)
	second := script.requests[1]
	require.NotEmpty(t, second.Tools)
	last := second.Contents[len(second.Contents)-1]
	assert.Equal(t, "tool", last.Role)
	fr, ok := last.Parts[0].(core.FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, "call-1", fr.FunctionResponse.ID)
	assert.Equal(t, "carrier,count\nWN,344827", fr.FunctionResponse.Response)
}

func TestQAAgent_UnknownToolReportedToModel(t *testing.T) {
	script := &scriptedModel{responses: []model.Response{
		{
			Content: core.Content{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "missing_tool"}},
			}},
			FinishReason: "tool_calls",
		},
		textResponse("I could not use that tool."),
	}}

	a := New(mockConfig(), func(o *Options) { o.Model = script })
	require.NoError(t, a.Setup(context.Background()))

	ans, err := a.Answer(context.Background(), "use the missing tool")
	require.NoError(t, err)
	assert.True(t, ans.Success)

	last := script.requests[1].Contents[len(script.requests[1].Contents)-1]
	fr, ok := last.Parts[0].(core.FunctionResponsePart)
	require.True(t, ok)
	assert.Contains(t, fr.FunctionResponse.Error, "not found")
}

func TestQAAgent_ModelErrorFallsBack(t *testing.T) {
	script := &scriptedModel{err: errors.New("api unavailable")}

	a := New(mockConfig(), func(o *Options) { o.Model = script })
	require.NoError(t, a.Setup(context.Background()))

	ans, err := a.Answer(context.Background(), "draw me a chart of flights")
	require.NoError(t, err)
	assert.False(t, ans.Success)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(ans.Response), &payload))
	assert.Equal(t, "api unavailable", payload["error"])
	assert.Contains(t, payload["text"], "chart")

	// Failed turns leave only the user message checkpointed.
	msgs := a.History()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.KindUser, msgs[0].Kind)
}

func TestQAAgent_ExceededToolRounds(t *testing.T) {
	loopResponse := model.Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c", Name: "noop", Arguments: "{}"}},
		}},
		FinishReason: "tool_calls",
	}
	script := &scriptedModel{responses: []model.Response{loopResponse, loopResponse, loopResponse}}

	noop := tool.NewFunctionTool("noop", "No-op", map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (any, error) { return "ok", nil })

	a := New(mockConfig(), func(o *Options) {
		o.Model = script
		o.MaxToolRounds = 2
	})
	require.NoError(t, a.Setup(context.Background()))
	a.RegisterTool(noop)

	ans, err := a.Answer(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.False(t, ans.Success)
	assert.Contains(t, ans.Metadata["error"], "maximum tool rounds")
}

func TestQAAgent_SetupDiscoversMCPTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "initialize":
			resp["result"] = map[string]any{"protocolVersion": "2024-11-05"}
		case "tools/list":
			resp["result"] = map[string]any{"tools": []map[string]any{
				{"name": "list_projects", "description": "List projects"},
				{"name": "execute_query", "description": "Run a query"},
			}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cfg := config.FromMap(map[string]any{
		"llm_provider": "mock",
		"mcp_url":      srv.URL,
	})
	a := New(cfg)
	require.NoError(t, a.Setup(context.Background()))

	// MCP tools plus the local chart generator.
	tools := a.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "list_projects", tools[0].Name())
	assert.Equal(t, "execute_query", tools[1].Name())
	assert.Equal(t, "generate_chart", tools[2].Name())

	info := a.Info()
	assert.Equal(t, "ready", info["status"])
	assert.Equal(t, 3, info["tools_count"])
	assert.NotNil(t, a.Client())
	assert.Equal(t, srv.URL, a.Client().URL())
}

func TestQAAgent_SetupRegistersChartToolWithoutMCP(t *testing.T) {
	a := New(mockConfig())
	require.NoError(t, a.Setup(context.Background()))

	tools := a.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "generate_chart", tools[0].Name())
}

func TestQAAgent_ChartToolCallLoop(t *testing.T) {
	script := &scriptedModel{responses: []model.Response{
		{
			Content: core.Content{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:   "call-chart",
					Name: "generate_chart",
					Arguments: `{"chart_config":{"type":"bar","data":{"labels":["WN"],` +
						`"datasets":[{"label":"Flights","data":[344827]}]}}}`,
				}},
			}},
			FinishReason: "tool_calls",
		},
		textResponse("Here's your chart: https://quickchart.io/chart?..."),
	}}

	a := New(mockConfig(), func(o *Options) { o.Model = script })
	require.NoError(t, a.Setup(context.Background()))

	ans, err := a.Answer(context.Background(), "chart the flights by carrier")
	require.NoError(t, err)
	assert.True(t, ans.Success)
	assert.Equal(t, []string{"generate_chart"}, ans.Metadata["tools_used"])

	// The model saw the chart URL payload.
	last := script.requests[1].Contents[len(script.requests[1].Contents)-1]
	fr, ok := last.Parts[0].(core.FunctionResponsePart)
	require.True(t, ok)
	assert.Contains(t, fr.FunctionResponse.Response, "quickchart.io/chart")
}

func TestQAAgent_SetupFailsWhenMCPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	cfg := config.FromMap(map[string]any{
		"llm_provider": "mock",
		"mcp_url":      srv.URL,
	})
	a := New(cfg)

	err := a.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MCP server")
}

func TestQAAgent_SetupFailsWithoutAPIKey(t *testing.T) {
	a := New(config.FromMap(map[string]any{"llm_provider": "anthropic"}))

	err := a.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestQAAgent_SetupFailsOnUnsupportedProvider(t *testing.T) {
	a := New(config.FromMap(map[string]any{"llm_provider": "watsonx"}))

	err := a.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestQAAgent_ClearAndSave(t *testing.T) {
	mock := model.NewMockModel("mock-1", "mock")
	a := New(mockConfig(), func(o *Options) { o.Model = mock })
	require.NoError(t, a.Setup(context.Background()))

	_, err := a.Answer(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, a.History())

	path := filepath.Join(t.TempDir(), "conv.json")
	require.NoError(t, a.Save(path))

	a.Clear()
	assert.Empty(t, a.History())
}

func TestQAAgent_InfoBeforeSetup(t *testing.T) {
	a := New(config.FromMap(map[string]any{"llm_provider": "mock", "mcp_url": "http://mcp:4040/mcp"}))

	info := a.Info()
	assert.Equal(t, "not_initialized", info["status"])
	assert.Equal(t, "http://mcp:4040/mcp", info["mcp_url"])
	assert.NotContains(t, info, "model")

	prompt, ok := info["prompt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v2.0", prompt["version"])
}

func TestQAAgent_CustomPrompt(t *testing.T) {
	script := &scriptedModel{responses: []model.Response{textResponse("ok")}}

	a := New(mockConfig(), func(o *Options) {
		o.Model = script
		o.Prompt = Prompt{Version: "v9-test", Text: "You answer in haiku."}
	})
	require.NoError(t, a.Setup(context.Background()))

	_, err := a.Answer(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, script.requests, 1)
	assert.Equal(t, "You answer in haiku.", script.requests[0].Instructions)

	prompt := a.Info()["prompt"].(map[string]any)
	assert.Equal(t, "v9-test", prompt["version"])
}
