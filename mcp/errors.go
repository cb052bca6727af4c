package mcp

import "fmt"

// ConnectionError reports that the MCP server could not be reached at the
// transport level (dial failure, reset, client-side timeout). It is distinct
// from RPCError, which means the server answered with a protocol-level error.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp connection to %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport failure.
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports that the server rejected the request as unauthorized.
type AuthError struct {
	URL        string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mcp server %s rejected request with status %d", e.URL, e.StatusCode)
}

// RPCError is the JSON-RPC error object returned by a reachable server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
}
