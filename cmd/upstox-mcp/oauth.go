package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/bobmcallan/upstox-mcp/internal/common"
	"github.com/bobmcallan/upstox-mcp/internal/config"
)

// callbackResult carries the outcome of the authorization redirect.
type callbackResult struct {
	code  string
	state string
	err   error
}

// doLoginFlow walks the Upstox OAuth dance: open the authorization dialog
// in a browser, catch the redirect on a local callback server, exchange the
// code for an access token, and persist it for later server runs.
func doLoginFlow(cfg *config.Config, store *FileTokenStore, logger *common.Logger) error {
	if cfg.Upstox.APIKey == "" || cfg.Upstox.APISecret == "" {
		return fmt.Errorf("login requires upstox.api_key and upstox.api_secret to be configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	state, err := generateState()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	resultChan := make(chan callbackResult, 1)
	callbackServer := startCallbackServer(cfg.Upstox.RedirectPort, state, resultChan)
	defer callbackServer.Close()

	authURL := buildAuthorizeURL(cfg, state)
	logger.Info().Str("url", authURL).Msg("opening Upstox login page")
	if err := openBrowser(authURL); err != nil {
		fmt.Fprintf(os.Stderr, "\nOpen this URL in your browser to log in:\n\n  %s\n\n", authURL)
	}

	var result callbackResult
	select {
	case result = <-resultChan:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for Upstox authorization")
	}
	if result.err != nil {
		return fmt.Errorf("authorization failed: %w", result.err)
	}

	accessToken, err := exchangeToken(ctx, cfg, result.code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	if err := store.SaveToken(&StoredToken{AccessToken: accessToken, ObtainedAt: time.Now()}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	logger.Info().Str("file", cfg.Auth.TokenFile).Msg("login complete, access token saved")
	return nil
}

// buildAuthorizeURL constructs the Upstox authorization dialog URL.
func buildAuthorizeURL(cfg *config.Config, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", cfg.Upstox.APIKey)
	params.Set("redirect_uri", cfg.Upstox.RedirectURI())
	params.Set("state", state)
	return cfg.Upstox.BaseURL + "/v2/login/authorization/dialog?" + params.Encode()
}

// exchangeToken trades the authorization code for an access token.
// Upstox expects a form-encoded POST and returns JSON.
func exchangeToken(ctx context.Context, cfg *config.Config, code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", cfg.Upstox.APIKey)
	form.Set("client_secret", cfg.Upstox.APISecret)
	form.Set("redirect_uri", cfg.Upstox.RedirectURI())
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.Upstox.BaseURL+"/v2/login/authorization/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access_token")
	}
	return tokenResp.AccessToken, nil
}

// startCallbackServer listens on localhost for the authorization redirect
// and reports the outcome on resultChan.
func startCallbackServer(port int, expectedState string, resultChan chan<- callbackResult) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(expectedState, resultChan))

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go srv.ListenAndServe() //nolint:errcheck // closed by doLoginFlow
	return srv
}

// callbackHandler validates the redirect parameters and hands them off.
// The state check rejects redirects that did not originate from our dialog.
func callbackHandler(expectedState string, resultChan chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if errCode := q.Get("error"); errCode != "" {
			desc := q.Get("error_description")
			resultChan <- callbackResult{err: fmt.Errorf("%s: %s", errCode, desc)}
			fmt.Fprintf(w, "<html><body><h1>Authorization Failed</h1><p>%s</p><p>You can close this tab.</p></body></html>", html.EscapeString(desc))
			return
		}

		if state := q.Get("state"); state != expectedState {
			resultChan <- callbackResult{err: fmt.Errorf("state mismatch in callback")}
			fmt.Fprint(w, "<html><body><h1>Authorization Failed</h1><p>State mismatch. You can close this tab.</p></body></html>")
			return
		}

		code := q.Get("code")
		if code == "" {
			resultChan <- callbackResult{err: fmt.Errorf("callback carried no authorization code")}
			fmt.Fprint(w, "<html><body><h1>Authorization Failed</h1><p>No authorization code received. You can close this tab.</p></body></html>")
			return
		}

		resultChan <- callbackResult{code: code, state: q.Get("state")}
		fmt.Fprint(w, "<html><body><h1>Authorization Successful</h1><p>You can close this tab and return to the terminal.</p></body></html>")
	}
}

// generateState creates a random value binding the dialog to our callback.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// openBrowser opens the URL in the default browser.
func openBrowser(url string) error {
	if isDocker() {
		return fmt.Errorf("running in container, cannot open browser")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		if isWSL() {
			cmd = exec.Command("cmd.exe", "/c", "start", url)
		} else {
			cmd = exec.Command("xdg-open", url)
		}
	}
	return cmd.Start()
}

// isDocker detects whether the process is running inside a container.
func isDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "docker") || strings.Contains(string(data), "containerd")
}

// isWSL detects Windows Subsystem for Linux.
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}
