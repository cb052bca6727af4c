package tool

import (
	"context"

	"github.com/hupe1980/agentbridge/mcp"
)

// NewMCPTool wraps a server-advertised MCP tool definition as a callable
// tool. Arguments are validated against the server's declared input schema
// and execution is delegated to the MCP client.
func NewMCPTool(client *mcp.Client, def mcp.ToolDefinition) *FunctionTool {
	return NewFunctionTool(
		def.Name,
		def.Description,
		def.InputSchema,
		func(ctx context.Context, args map[string]any) (any, error) {
			return client.CallTool(ctx, def.Name, args)
		},
	)
}
