// Package config loads layered TOML configuration for the Upstox MCP server.
// Priority: defaults -> config file(s) -> environment -> CLI flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/upstox-mcp/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig         `toml:"server"`
	Upstox  UpstoxConfig         `toml:"upstox"`
	Auth    AuthConfig           `toml:"auth"`
	Logging common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains MCP server settings.
type ServerConfig struct {
	Name string `toml:"name"`
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// UpstoxConfig contains upstream Upstox API settings.
// AccessToken, when set, is the server-level fallback used by tool calls
// that do not supply an access_token argument.
type UpstoxConfig struct {
	BaseURL      string `toml:"base_url"`
	AccessToken  string `toml:"access_token"`
	APIKey       string `toml:"api_key"`
	APISecret    string `toml:"api_secret"`
	RedirectPort int    `toml:"redirect_port"`
	Timeout      string `toml:"timeout"`
}

// GetTimeout parses and returns the upstream request timeout
func (c *UpstoxConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RedirectURI returns the OAuth callback URI for the configured redirect port.
func (c *UpstoxConfig) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", c.RedirectPort)
}

// AuthConfig contains token persistence settings.
type AuthConfig struct {
	TokenFile string `toml:"token_file"`
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Missing files are skipped.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies UPSTOX_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("UPSTOX_MCP_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("UPSTOX_MCP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if base := os.Getenv("UPSTOX_BASE_URL"); base != "" {
		config.Upstox.BaseURL = base
	}
	if token := os.Getenv("UPSTOX_ACCESS_TOKEN"); token != "" {
		config.Upstox.AccessToken = token
	}
	if key := os.Getenv("UPSTOX_API_KEY"); key != "" {
		config.Upstox.APIKey = key
	}
	if secret := os.Getenv("UPSTOX_API_SECRET"); secret != "" {
		config.Upstox.APISecret = secret
	}
	if file := os.Getenv("UPSTOX_TOKEN_FILE"); file != "" {
		config.Auth.TokenFile = file
	}
	if level := os.Getenv("UPSTOX_MCP_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks mandatory configuration and returns a list of issues.
// An empty list means the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port %d is out of range (1-65535)", c.Server.Port))
	}
	if c.Upstox.BaseURL == "" {
		issues = append(issues, "upstox.base_url is required")
	} else if u, err := url.Parse(c.Upstox.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("upstox.base_url %q is not a valid URL", c.Upstox.BaseURL))
	}
	if c.Upstox.RedirectPort < 1 || c.Upstox.RedirectPort > 65535 {
		issues = append(issues, fmt.Sprintf("upstox.redirect_port %d is out of range (1-65535)", c.Upstox.RedirectPort))
	}

	return issues
}
