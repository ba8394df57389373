package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/upstox-mcp/internal/config"
)

func loginConfig(baseURL string) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Upstox.BaseURL = baseURL
	cfg.Upstox.APIKey = "demo-key"
	cfg.Upstox.APISecret = "demo-secret"
	return cfg
}

func TestBuildAuthorizeURL(t *testing.T) {
	cfg := loginConfig("https://api.upstox.com")

	raw := buildAuthorizeURL(cfg, "abc123")

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("authorize URL does not parse: %v", err)
	}
	if parsed.Path != "/v2/login/authorization/dialog" {
		t.Errorf("expected dialog path, got '%s'", parsed.Path)
	}

	q := parsed.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("expected response_type=code, got '%s'", q.Get("response_type"))
	}
	if q.Get("client_id") != "demo-key" {
		t.Errorf("expected client_id=demo-key, got '%s'", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://localhost:8787/callback" {
		t.Errorf("expected default redirect_uri, got '%s'", q.Get("redirect_uri"))
	}
	if q.Get("state") != "abc123" {
		t.Errorf("expected state=abc123, got '%s'", q.Get("state"))
	}
}

func TestBuildAuthorizeURL_CustomRedirectPort(t *testing.T) {
	cfg := loginConfig("https://api.upstox.com")
	cfg.Upstox.RedirectPort = 9999

	raw := buildAuthorizeURL(cfg, "s")

	parsed, _ := url.Parse(raw)
	if got := parsed.Query().Get("redirect_uri"); got != "http://localhost:9999/callback" {
		t.Errorf("expected redirect_uri on port 9999, got '%s'", got)
	}
}

func TestCallbackHandler_Success(t *testing.T) {
	resultChan := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", resultChan)

	req := httptest.NewRequest("GET", "/callback?code=auth-code&state=expected-state", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	select {
	case result := <-resultChan:
		if result.err != nil {
			t.Fatalf("expected success, got error: %v", result.err)
		}
		if result.code != "auth-code" {
			t.Errorf("expected code 'auth-code', got '%s'", result.code)
		}
	case <-time.After(time.Second):
		t.Fatal("no result received from callback handler")
	}

	if !strings.Contains(rec.Body.String(), "Authorization Successful") {
		t.Error("expected success page in response body")
	}
}

func TestCallbackHandler_StateMismatch(t *testing.T) {
	resultChan := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", resultChan)

	req := httptest.NewRequest("GET", "/callback?code=auth-code&state=forged", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	result := <-resultChan
	if result.err == nil {
		t.Fatal("expected error for state mismatch")
	}
	if !strings.Contains(result.err.Error(), "state mismatch") {
		t.Errorf("expected state mismatch error, got: %v", result.err)
	}
}

func TestCallbackHandler_ProviderError(t *testing.T) {
	resultChan := make(chan callbackResult, 1)
	handler := callbackHandler("s", resultChan)

	req := httptest.NewRequest("GET", "/callback?error=access_denied&error_description=User+cancelled", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	result := <-resultChan
	if result.err == nil {
		t.Fatal("expected error for provider error response")
	}
	if !strings.Contains(result.err.Error(), "access_denied") {
		t.Errorf("expected access_denied in error, got: %v", result.err)
	}
	if !strings.Contains(rec.Body.String(), "Authorization Failed") {
		t.Error("expected failure page in response body")
	}
}

func TestCallbackHandler_MissingCode(t *testing.T) {
	resultChan := make(chan callbackResult, 1)
	handler := callbackHandler("s", resultChan)

	req := httptest.NewRequest("GET", "/callback?state=s", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	result := <-resultChan
	if result.err == nil {
		t.Fatal("expected error when callback has no code")
	}
}

func TestExchangeToken_Success(t *testing.T) {
	var receivedForm url.Values
	var receivedAccept, receivedContentType string

	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v2/login/authorization/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		receivedAccept = r.Header.Get("Accept")
		receivedContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		receivedForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"granted-token","token_type":"bearer"}`))
	}))
	defer mock.Close()

	cfg := loginConfig(mock.URL)

	token, err := exchangeToken(t.Context(), cfg, "auth-code")
	if err != nil {
		t.Fatalf("exchangeToken failed: %v", err)
	}
	if token != "granted-token" {
		t.Errorf("expected 'granted-token', got '%s'", token)
	}

	if receivedAccept != "application/json" {
		t.Errorf("expected Accept application/json, got '%s'", receivedAccept)
	}
	if receivedContentType != "application/x-www-form-urlencoded" {
		t.Errorf("expected form content type, got '%s'", receivedContentType)
	}
	if receivedForm.Get("code") != "auth-code" {
		t.Errorf("expected code field, got '%s'", receivedForm.Get("code"))
	}
	if receivedForm.Get("client_id") != "demo-key" {
		t.Errorf("expected client_id field, got '%s'", receivedForm.Get("client_id"))
	}
	if receivedForm.Get("client_secret") != "demo-secret" {
		t.Errorf("expected client_secret field, got '%s'", receivedForm.Get("client_secret"))
	}
	if receivedForm.Get("redirect_uri") != "http://localhost:8787/callback" {
		t.Errorf("expected redirect_uri field, got '%s'", receivedForm.Get("redirect_uri"))
	}
	if receivedForm.Get("grant_type") != "authorization_code" {
		t.Errorf("expected grant_type authorization_code, got '%s'", receivedForm.Get("grant_type"))
	}
}

func TestExchangeToken_NonSuccessStatus(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error"}`))
	}))
	defer mock.Close()

	_, err := exchangeToken(t.Context(), loginConfig(mock.URL), "bad-code")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestExchangeToken_EmptyToken(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer mock.Close()

	_, err := exchangeToken(t.Context(), loginConfig(mock.URL), "code")
	if err == nil {
		t.Fatal("expected error when response carries no access_token")
	}
}

func TestGenerateState_Unique(t *testing.T) {
	first, err := generateState()
	if err != nil {
		t.Fatalf("generateState failed: %v", err)
	}
	second, err := generateState()
	if err != nil {
		t.Fatalf("generateState failed: %v", err)
	}

	if len(first) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(first))
	}
	if first == second {
		t.Error("expected distinct state values")
	}
}

func TestTokenSource_ConfigTakesPrecedence(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Upstox.AccessToken = "config-token"
	store := NewFileTokenStore("/nonexistent/token.json")

	if got := tokenSource(cfg, store)(); got != "config-token" {
		t.Errorf("expected config token, got '%s'", got)
	}
}

func TestTokenSource_FallsBackToStore(t *testing.T) {
	cfg := config.NewDefaultConfig()
	store := NewFileTokenStore(writeTokenFile(t, "stored-token"))

	if got := tokenSource(cfg, store)(); got != "stored-token" {
		t.Errorf("expected stored token, got '%s'", got)
	}
}

func TestTokenSource_EmptyWhenNothingAvailable(t *testing.T) {
	cfg := config.NewDefaultConfig()
	store := NewFileTokenStore("/nonexistent/token.json")

	if got := tokenSource(cfg, store)(); got != "" {
		t.Errorf("expected empty token, got '%s'", got)
	}
}

func writeTokenFile(t *testing.T, token string) string {
	t.Helper()
	store := NewFileTokenStore(t.TempDir() + "/token.json")
	if err := store.SaveToken(&StoredToken{AccessToken: token, ObtainedAt: time.Now()}); err != nil {
		t.Fatalf("failed to seed token file: %v", err)
	}
	return store.path
}
