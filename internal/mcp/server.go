package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
	svc    QA
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(svc QA) *Server {
	impl := &mcp.Implementation{
		Name:    "docqa-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_docs",
		Description: "Answer a natural-language question from a session's uploaded documents. Returns a structured answer with rationale and cited evidence.",
	}, makeAskHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_docs",
		Description: "Semantically search a session's uploaded documents. Returns ranked text units with relevance scores.",
	}, makeSearchHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Get the current service status including the number of live sessions.",
	}, makeStatusHandler(svc))

	return &Server{
		server: server,
		svc:    svc,
	}
}

// Run starts the server with stdio transport (blocks until client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
