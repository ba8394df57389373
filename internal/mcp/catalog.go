package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bobmcallan/upstox-mcp/internal/common"
	"github.com/bobmcallan/upstox-mcp/internal/upstox"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// allowedMethods is the whitelist of HTTP methods for endpoint tools.
// The Upstox surface exposed here is read-only.
var allowedMethods = map[string]bool{
	"GET": true,
}

// EndpointTool describes one MCP tool backed by a single Upstox REST endpoint.
type EndpointTool struct {
	Name        string
	Description string
	Method      string
	Path        string
	Params      []EndpointParam

	// RequireOneOf lists parameter names of which at least one must be
	// supplied. Empty means no such constraint.
	RequireOneOf []string
}

// EndpointParam describes one query parameter of an endpoint tool.
type EndpointParam struct {
	Name        string
	Label       string // human-readable name used in validation messages
	Description string
	Required    bool
	Enum        []string
}

// Catalog returns the static endpoint descriptors for every Upstox tool.
func Catalog() []EndpointTool {
	return []EndpointTool{
		{
			Name:        "get_profile",
			Description: "Get the Upstox user profile: name, email, enabled exchanges and products.",
			Method:      "GET",
			Path:        "/v2/user/profile",
		},
		{
			Name:        "get_funds_and_margin",
			Description: "Get available funds and margin details, optionally filtered by market segment.",
			Method:      "GET",
			Path:        "/v2/user/get-funds-and-margin",
			Params: []EndpointParam{
				{
					Name:        "segment",
					Label:       "Segment",
					Description: "Market segment: SEC (equity) or COM (commodity). Omit to get both.",
					Enum:        []string{"SEC", "COM"},
				},
			},
		},
		{
			Name:        "get_holdings",
			Description: "Get long-term holdings in the user's portfolio.",
			Method:      "GET",
			Path:        "/v2/portfolio/long-term-holdings",
		},
		{
			Name:        "get_positions",
			Description: "Get short-term positions in the user's portfolio.",
			Method:      "GET",
			Path:        "/v2/portfolio/short-term-positions",
		},
		{
			Name:        "get_mtf_positions",
			Description: "Get margin trade funding (MTF) positions in the user's portfolio.",
			Method:      "GET",
			Path:        "/v3/portfolio/mtf-positions",
		},
		{
			Name:        "get_order_book",
			Description: "Get the order book: all orders placed during the current trading day.",
			Method:      "GET",
			Path:        "/v2/order/book",
		},
		{
			Name:        "get_order_details",
			Description: "Get the details of a single order.",
			Method:      "GET",
			Path:        "/v2/order/details",
			Params: []EndpointParam{
				{
					Name:        "order_id",
					Label:       "Order ID",
					Description: "Unique identifier of the order.",
					Required:    true,
				},
			},
		},
		{
			Name:        "get_order_trades",
			Description: "Get the trades executed for a single order.",
			Method:      "GET",
			Path:        "/v2/order/trades",
			Params: []EndpointParam{
				{
					Name:        "order_id",
					Label:       "Order ID",
					Description: "Unique identifier of the order.",
					Required:    true,
				},
			},
		},
		{
			Name:        "get_order_history",
			Description: "Get the state transition history of an order, looked up by order ID or tag.",
			Method:      "GET",
			Path:        "/v2/order/history",
			Params: []EndpointParam{
				{
					Name:        "order_id",
					Label:       "Order ID",
					Description: "Unique identifier of the order.",
				},
				{
					Name:        "tag",
					Label:       "Tag",
					Description: "Tag the order was placed with.",
				},
			},
			RequireOneOf: []string{"order_id", "tag"},
		},
		{
			Name:        "get_trades_for_day",
			Description: "Get all trades executed during the current trading day.",
			Method:      "GET",
			Path:        "/v2/order/trades/get-trades-for-day",
		},
	}
}

// ValidateTool validates a single endpoint tool definition.
func ValidateTool(et EndpointTool) error {
	if et.Name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if et.Method == "" {
		return fmt.Errorf("tool %q has empty method", et.Name)
	}
	if !allowedMethods[strings.ToUpper(et.Method)] {
		return fmt.Errorf("tool %q has unsupported method %q", et.Name, et.Method)
	}
	if et.Path == "" {
		return fmt.Errorf("tool %q has empty path", et.Name)
	}
	if !strings.HasPrefix(et.Path, "/v2/") && !strings.HasPrefix(et.Path, "/v3/") {
		return fmt.Errorf("tool %q has invalid path %q (must start with /v2/ or /v3/)", et.Name, et.Path)
	}
	if strings.Contains(et.Path, "..") {
		return fmt.Errorf("tool %q has invalid path %q (contains ..)", et.Name, et.Path)
	}
	for _, name := range et.RequireOneOf {
		if findParam(et, name) == nil {
			return fmt.Errorf("tool %q lists %q in RequireOneOf but has no such parameter", et.Name, name)
		}
	}
	return nil
}

// ValidateCatalog filters and validates catalog entries, logging warnings for invalid or duplicate tools.
func ValidateCatalog(catalog []EndpointTool, logger *common.Logger) []EndpointTool {
	seen := make(map[string]bool, len(catalog))
	valid := make([]EndpointTool, 0, len(catalog))
	for _, et := range catalog {
		if err := ValidateTool(et); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("skipping invalid endpoint tool")
			continue
		}
		if seen[et.Name] {
			logger.Warn().Str("name", et.Name).Msg("skipping duplicate endpoint tool")
			continue
		}
		seen[et.Name] = true
		valid = append(valid, et)
	}
	return valid
}

// findParam returns the parameter with the given name, or nil.
func findParam(et EndpointTool, name string) *EndpointParam {
	for i := range et.Params {
		if et.Params[i].Name == name {
			return &et.Params[i]
		}
	}
	return nil
}

// BuildTool converts an EndpointTool into an mcp.Tool with the appropriate schema.
// Every tool additionally accepts an optional access_token argument that
// overrides the token configured on the server.
func BuildTool(et EndpointTool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(et.Description),
		mcp.WithString("access_token",
			mcp.Description("Upstox API access token. Falls back to the token configured on the server when omitted."),
		),
	}
	for _, p := range et.Params {
		opts = append(opts, buildParamOption(p))
	}
	return mcp.NewTool(et.Name, opts...)
}

// buildParamOption maps an EndpointParam to an mcp-go string property option.
func buildParamOption(p EndpointParam) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	if len(p.Enum) > 0 {
		opts = append(opts, mcp.Enum(p.Enum...))
	}
	return mcp.WithString(p.Name, opts...)
}

// GenericToolHandler creates a handler that validates arguments, calls the
// Upstox endpoint described by the descriptor, and wraps the response.
// Validation failures and upstream failures are returned as MCP error
// results; no request is sent until every argument check has passed.
func GenericToolHandler(client *upstox.Client, et EndpointTool, tokens TokenSource) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		token := resolveAccessToken(r, tokens)
		if token == "" {
			return errorResult("Access token is required"), nil
		}

		query := url.Values{}
		for _, param := range et.Params {
			val := r.GetString(param.Name, "")
			if val == "" {
				if param.Required {
					return errorResult(fmt.Sprintf("%s is required", param.Label)), nil
				}
				continue
			}
			if len(param.Enum) > 0 && !containsValue(param.Enum, val) {
				return errorResult(fmt.Sprintf("%s must be one of %s", param.Label, strings.Join(param.Enum, ", "))), nil
			}
			query.Set(param.Name, val)
		}

		if len(et.RequireOneOf) > 0 && !anySet(query, et.RequireOneOf) {
			return errorResult(fmt.Sprintf("At least one of %s is required", strings.Join(et.RequireOneOf, " or "))), nil
		}

		body, err := client.Get(ctx, et.Path, query, token)
		if err != nil {
			return errorResult("Error occurred while calling Upstox API"), nil
		}

		pretty, err := prettyJSON(body)
		if err != nil {
			return errorResult("Upstox API returned a malformed response body"), nil
		}
		return textResult(pretty), nil
	}
}

// containsValue reports whether the allowed list contains val.
func containsValue(allowed []string, val string) bool {
	for _, a := range allowed {
		if a == val {
			return true
		}
	}
	return false
}

// anySet reports whether at least one of the named query parameters is set.
func anySet(query url.Values, names []string) bool {
	for _, name := range names {
		if query.Get(name) != "" {
			return true
		}
	}
	return false
}
