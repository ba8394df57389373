// Package upstox is a minimal HTTP client for the Upstox REST API.
// It builds read-only requests against a fixed base URL and returns raw
// response bodies; interpreting the JSON is left to the caller.
package upstox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bobmcallan/upstox-mcp/internal/common"
)

// maxResponseSize caps the response body to prevent OOM from unexpectedly large responses.
const maxResponseSize = 10 << 20 // 10MB

// Client issues requests to the Upstox API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *common.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request against path with the given query parameters,
// authenticated with the bearer token. Returns the raw response body on a
// success status; any transport failure or non-success status is an error.
func (c *Client) Get(ctx context.Context, path string, query url.Values, token string) ([]byte, error) {
	fullPath := path
	if len(query) > 0 {
		fullPath += "?" + query.Encode()
	}

	c.logger.Debug().Str("method", "GET").Str("path", fullPath).Msg("upstox request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fullPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error().Str("method", "GET").Str("path", fullPath).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("upstox request failed")
		return nil, fmt.Errorf("upstox request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Msg("upstox response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Str("path", fullPath).Int("status", resp.StatusCode).Str("body", snippet(body)).Msg("upstox returned non-success status")
		return nil, fmt.Errorf("upstox returned status %d", resp.StatusCode)
	}

	return body, nil
}

// snippet truncates a response body for log output.
func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
