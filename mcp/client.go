// Package mcp implements a minimal JSON-RPC 2.0 HTTP client for Model Context
// Protocol servers. The agent uses it to discover tool definitions and to
// execute tool calls against the data server.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentbridge/logging"
)

// protocolVersion is the MCP revision sent during initialization.
const protocolVersion = "2024-11-05"

// ToolDefinition describes one tool advertised by the server.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Options configures the Client.
type Options struct {
	// HTTPClient overrides the underlying transport (useful for tests).
	HTTPClient *http.Client
	// Timeout bounds each individual request when HTTPClient is not supplied.
	Timeout time.Duration
	// Logger receives request/response diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Client speaks JSON-RPC 2.0 to an MCP server over HTTP POST.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	nextID     atomic.Int64
}

// NewClient constructs a Client for the given endpoint URL.
func NewClient(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.baseURL }

// call performs one JSON-RPC request and unmarshals the result into out.
// Transport failures surface as *ConnectionError, unauthorized responses as
// *AuthError and protocol-level failures as *RPCError.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
	}
	if params != nil {
		envelope["params"] = params
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("mcp.rpc.request", "method", method, "url", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{URL: c.baseURL, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mcp server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode rpc result: %w", err)
		}
	}
	return nil
}

// Initialize performs the MCP handshake. Servers that do not implement the
// handshake still count as reachable when they answer with a well-formed
// JSON-RPC error.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "agentbridge",
			"version": "1.0.0",
		},
	}
	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("mcp initialize failed: %w", err)
	}
	c.logger.Info("mcp.initialized", "protocol_version", result.ProtocolVersion)
	return nil
}

// Ping verifies connectivity to the server.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

// ListTools fetches the tool definitions advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	var result struct {
		Tools []ToolDefinition `json:"tools"`
	}
	if err := c.call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, fmt.Errorf("mcp tools/list failed: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a named tool with the given arguments and returns the
// concatenated text content of the result. A result flagged isError is
// surfaced as an error with the text as its message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return "", fmt.Errorf("mcp tools/call %q failed: %w", name, err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	text := sb.String()

	if result.IsError {
		return "", fmt.Errorf("tool %q reported an error: %s", name, text)
	}
	return text, nil
}
