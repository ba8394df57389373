package config

import "github.com/bobmcallan/upstox-mcp/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "Upstox-MCP",
			Host: "localhost",
			Port: 4270,
		},
		Upstox: UpstoxConfig{
			BaseURL:      "https://api.upstox.com",
			RedirectPort: 8787,
			Timeout:      "30s",
		},
		Auth: AuthConfig{
			TokenFile: "data/upstox-token.json",
		},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "logs/upstox-mcp.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
