package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcRequest mirrors the wire envelope for test-side decoding.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func newTestServer(t *testing.T, handler func(req rpcRequest) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch result := handler(req).(type) {
		case *RPCError:
			resp["error"] = result
		default:
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClient_ListTools(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		assert.Equal(t, "tools/list", req.Method)
		return map[string]any{
			"tools": []map[string]any{
				{
					"name":        "execute_query",
					"description": "Run a Malloy query",
					"inputSchema": map[string]any{
						"type":       "object",
						"properties": map[string]any{"query": map[string]any{"type": "string"}},
						"required":   []string{"query"},
					},
				},
				{"name": "list_projects", "description": "List projects"},
			},
		}
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	tools, err := client.ListTools(context.Background())

	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "execute_query", tools[0].Name)
	assert.Equal(t, "Run a Malloy query", tools[0].Description)
	assert.Contains(t, tools[0].InputSchema, "properties")
	assert.Nil(t, tools[1].InputSchema)
}

func TestClient_CallTool(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		assert.Equal(t, "tools/call", req.Method)
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "execute_query", params.Name)
		assert.Equal(t, "flights -> by_carrier", params.Arguments["query"])
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "carrier,count\n"},
				{"type": "text", "text": "WN,344827"},
			},
		}
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	out, err := client.CallTool(context.Background(), "execute_query", map[string]any{"query": "flights -> by_carrier"})

	require.NoError(t, err)
	assert.Equal(t, "carrier,count\nWN,344827", out)
}

func TestClient_CallTool_IsError(t *testing.T) {
	srv := newTestServer(t, func(rpcRequest) any {
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": "no such model"}},
			"isError": true,
		}
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CallTool(context.Background(), "execute_query", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such model")
}

func TestClient_RPCError(t *testing.T) {
	srv := newTestServer(t, func(rpcRequest) any {
		return &RPCError{Code: -32601, Message: "method not found"}
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ListTools(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClient_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	client := NewClient(srv.URL)
	err := client.Ping(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, srv.URL, connErr.URL)
}

func TestClient_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Ping(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestClient_Initialize(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) any {
		assert.Equal(t, "initialize", req.Method)
		var params struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.NotEmpty(t, params.ProtocolVersion)
		return map[string]any{"protocolVersion": params.ProtocolVersion}
	})
	defer srv.Close()

	client := NewClient(srv.URL)
	assert.NoError(t, client.Initialize(context.Background()))
}

func TestClient_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone fishing", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
