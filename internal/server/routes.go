package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Google OAuth flow for connecting a YouTube account
	mux.HandleFunc("/auth/google", s.AuthRedirectHandler)
	mux.HandleFunc("/auth/google/callback", s.AuthCallbackHandler)

	// API routes - workflow traces
	mux.HandleFunc("/api/traces", s.ListTracesHandler) // GET - all traces, newest first
	mux.HandleFunc("/api/traces/", s.GetTraceHandler)  // GET /{id}

	// API routes - settings (SMTP credentials and other operator key/values)
	mux.HandleFunc("/api/kv", s.ListKVHandler)
	mux.HandleFunc("/api/kv/", s.KVItemHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.StatusHandler)
	mux.HandleFunc("/api/version", s.VersionHandler)
	mux.HandleFunc("/api/health", s.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.NotFoundHandler)

	// Stored objects (videos, thumbnails) when using the local backend
	if s.app.Config.Storage.Type == "local" {
		fs := http.FileServer(http.Dir(s.app.Config.Storage.Local.BasePath))
		mux.Handle("/objects/", http.StripPrefix("/objects/", fs))
	}

	return mux
}
