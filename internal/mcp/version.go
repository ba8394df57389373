package mcp

import (
	"context"
	"encoding/json"

	"github.com/bobmcallan/upstox-mcp/internal/common"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// versionInfo holds the server build fields reported by get_version.
type versionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// VersionTool returns the mcp.Tool definition for the get_version tool.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Upstox MCP server version and status. Use this to verify connectivity."),
	)
}

// VersionToolHandler returns a handler that reports the server build information.
func VersionToolHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info := versionInfo{
			Name:    "upstox-mcp",
			Version: common.GetVersion(),
			Build:   common.GetBuild(),
			Commit:  common.GetGitCommit(),
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return errorResult("failed to marshal version info"), nil
		}
		return textResult(string(out)), nil
	}
}
