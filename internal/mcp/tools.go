package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/upstox-mcp/internal/upstox"
)

// RegisterTools registers one MCP tool per endpoint descriptor.
func RegisterTools(s *server.MCPServer, client *upstox.Client, catalog []EndpointTool, tokens TokenSource) int {
	for _, et := range catalog {
		tool := BuildTool(et)
		handler := GenericToolHandler(client, et, tokens)
		s.AddTool(tool, handler)
	}
	return len(catalog)
}
