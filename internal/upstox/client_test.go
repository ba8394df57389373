package upstox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/upstox-mcp/internal/common"
)

func testLogger() *common.Logger {
	return common.NewSilentLogger()
}

func TestGet_Success(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v2/user/profile" {
			t.Errorf("expected path /v2/user/profile, got %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("expected Accept application/json, got %q", accept)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer demo-token" {
			t.Errorf("expected Authorization Bearer demo-token, got %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"user_name":"Demo"}}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, testLogger())

	body, err := client.Get(context.Background(), "/v2/user/profile", nil, "demo-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "Demo") {
		t.Errorf("expected body to contain user name, got %s", body)
	}
}

func TestGet_QueryParams(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("segment"); got != "SEC" {
			t.Errorf("expected segment=SEC, got %q", got)
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, testLogger())

	query := url.Values{}
	query.Set("segment", "SEC")
	if _, err := client.Get(context.Background(), "/v2/user/get-funds-and-margin", query, "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_NoQueryNoQuestionMark(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected empty query string, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, testLogger())

	if _, err := client.Get(context.Background(), "/v2/order/book", url.Values{}, "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"status":"error","errors":[{"message":"nope"}]}`))
		}))

		client := NewClient(mockServer.URL, 5*time.Second, testLogger())

		_, err := client.Get(context.Background(), "/v2/user/profile", nil, "tok")
		if err == nil {
			t.Errorf("expected error for status %d, got nil", status)
		}

		mockServer.Close()
	}
}

func TestGet_TransportError(t *testing.T) {
	// Port 1 is reserved and never listening.
	client := NewClient("http://127.0.0.1:1", 1*time.Second, testLogger())

	_, err := client.Get(context.Background(), "/v2/user/profile", nil, "tok")
	if err == nil {
		t.Error("expected transport error, got nil")
	}
}

func TestGet_ContextCancelled(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 30*time.Second, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/v2/user/profile", nil, "tok")
	if err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
}

func TestNewClient_ZeroTimeoutGetsDefault(t *testing.T) {
	client := NewClient("http://localhost", 0, testLogger())
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected 30s default timeout, got %v", client.httpClient.Timeout)
	}
}
