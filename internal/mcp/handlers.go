package mcp

import (
	"bytes"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// TokenSource supplies a fallback access token for tool calls that do not
// carry one in their arguments. A nil source never supplies a token.
type TokenSource func() string

// errorResult creates an MCP error result.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// textResult creates a successful MCP result with a single text content item.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// resolveAccessToken resolves the access token from the request arguments,
// falling back to the configured token source. Returns empty string when
// neither supplies a token.
func resolveAccessToken(r mcp.CallToolRequest, tokens TokenSource) string {
	if token := r.GetString("access_token", ""); token != "" {
		return token
	}
	if tokens != nil {
		return tokens()
	}
	return ""
}

// prettyJSON re-indents a raw JSON document with two-space indentation.
// Indenting operates on the raw bytes, so object key order is preserved
// exactly as the upstream sent it, and re-indenting already indented
// output yields identical bytes.
func prettyJSON(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}
