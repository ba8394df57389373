// Package mcp exposes the Upstox tool catalog over the Model Context Protocol.
//
// Each tool maps one-to-one onto an Upstox REST endpoint. A static catalog of
// endpoint descriptors drives schema generation and a single generic handler,
// so every tool shares the same validate, fetch, and wrap pipeline.
package mcp

import (
	"net/http"

	"github.com/bobmcallan/upstox-mcp/internal/common"
	"github.com/bobmcallan/upstox-mcp/internal/config"
	"github.com/bobmcallan/upstox-mcp/internal/upstox"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Handler is the MCP surface of the server. It owns the tool registry and
// serves it over streamable HTTP or stdio.
type Handler struct {
	mcp        *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
	catalog    []EndpointTool
}

// NewHandler builds the MCP server, registers every endpoint tool from the
// static catalog, and wraps it for streamable HTTP transport.
func NewHandler(cfg *config.Config, tokens TokenSource, logger *common.Logger) *Handler {
	mcpSrv := mcpserver.NewMCPServer(
		"upstox-mcp",
		common.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)

	client := upstox.NewClient(cfg.Upstox.BaseURL, cfg.Upstox.GetTimeout(), logger)

	validated := ValidateCatalog(Catalog(), logger)
	toolCount := RegisterTools(mcpSrv, client, validated, tokens)

	mcpSrv.AddTool(VersionTool(), VersionToolHandler())

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", toolCount).
		Str("base_url", cfg.Upstox.BaseURL).
		Msg("MCP handler initialized")

	return &Handler{
		mcp:        mcpSrv,
		streamable: streamable,
		logger:     logger,
		catalog:    validated,
	}
}

// Catalog returns a copy of the validated tool catalog.
func (h *Handler) Catalog() []EndpointTool {
	result := make([]EndpointTool, len(h.catalog))
	copy(result, h.catalog)
	return result
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}

// ServeStdio serves the MCP protocol on stdin/stdout. It blocks until the
// stream closes or the process receives an interrupt.
func (h *Handler) ServeStdio() error {
	return mcpserver.ServeStdio(h.mcp)
}
