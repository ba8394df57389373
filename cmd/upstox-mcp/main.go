package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobmcallan/upstox-mcp/internal/common"
	"github.com/bobmcallan/upstox-mcp/internal/config"
	"github.com/bobmcallan/upstox-mcp/internal/mcp"
	"github.com/bobmcallan/upstox-mcp/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	stdio       = flag.Bool("stdio", false, "Serve MCP over stdio instead of HTTP (for Claude Desktop)")
	login       = flag.Bool("login", false, "Run the Upstox login flow, save the access token, and exit")
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.IntVar(serverPort, "p", 0, "Server port (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		common.LoadVersionFromFile()
		fmt.Printf("upstox-mcp %s (build %s)\n", common.GetVersion(), common.GetBuild())
		return
	}

	// No explicit config: pick up the first discoverable TOML file.
	if len(configFiles) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				configFiles = append(configFiles, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.ApplyFlagOverrides(cfg, *serverPort, *serverHost)

	if issues := cfg.Validate(); len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Configuration error: mandatory fields are missing or invalid")
		fmt.Fprintln(os.Stderr, "")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Values can be set in a TOML config file (-config), via UPSTOX_*")
		fmt.Fprintln(os.Stderr, "environment variables, or with CLI flags.")
		fmt.Fprintln(os.Stderr, "")
		os.Exit(1)
	}

	common.LoadVersionFromFile()
	logger := common.NewLoggerFromConfig(cfg.Logging)

	store := NewFileTokenStore(cfg.Auth.TokenFile)

	if *login {
		if err := doLoginFlow(cfg, store, logger); err != nil {
			logger.Error().Str("error", err.Error()).Msg("login failed")
			os.Exit(1)
		}
		return
	}

	handler := mcp.NewHandler(cfg, tokenSource(cfg, store), logger)

	if *stdio {
		// Stdio owns stdout, logging is already routed to stderr and file.
		if err := handler.ServeStdio(); err != nil {
			logger.Error().Str("error", err.Error()).Msg("stdio server failed")
			os.Exit(1)
		}
		return
	}

	srv := server.New(cfg, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Str("error", err.Error()).Msg("server failed")
			os.Exit(1)
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d/mcp", cfg.Server.Host, cfg.Server.Port)).
		Str("version", common.GetVersion()).
		Msg("upstox-mcp ready")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	<-shutdownChan

	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Str("error", err.Error()).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

// tokenSource resolves the fallback access token for tool calls that omit
// access_token: the configured token wins, then the token saved by the
// last -login run.
func tokenSource(cfg *config.Config, store *FileTokenStore) mcp.TokenSource {
	return func() string {
		if cfg.Upstox.AccessToken != "" {
			return cfg.Upstox.AccessToken
		}
		if token, err := store.GetToken(); err == nil {
			return token.AccessToken
		}
		return ""
	}
}

// configSearchPaths returns candidate config locations, binary-relative
// paths first so installed deployments find their own config.
func configSearchPaths() []string {
	relative := []string{
		"upstox-mcp.toml",
		filepath.Join("config", "upstox-mcp.toml"),
	}

	paths := make([]string, 0, len(relative)*2)
	if exe, err := os.Executable(); err == nil {
		binDir := filepath.Dir(exe)
		for _, rel := range relative {
			paths = append(paths, filepath.Join(binDir, rel))
		}
	}
	paths = append(paths, relative...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
