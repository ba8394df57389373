package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// MCP endpoint (JSON-RPC over HTTP)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	// API routes
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// JSON 404 for everything else
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
