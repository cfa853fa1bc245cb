package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

const oauthStateCookie = "tubecast_oauth_state"

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.app.Logger.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// AuthRedirectHandler starts the Google OAuth flow
func (s *Server) AuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.app.AuthService.AuthURL(state), http.StatusTemporaryRedirect)
}

// AuthCallbackHandler completes the Google OAuth flow, stores the tokens, and
// serves a page that notifies the opener window before closing itself
func (s *Server) AuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		s.app.Logger.Warn().Str("error", errParam).Msg("OAuth consent denied")
		s.serveCallbackPage(w, false, fmt.Sprintf("Google sign-in failed: %s", errParam))
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		s.app.Logger.Warn().Msg("OAuth callback state mismatch")
		s.serveCallbackPage(w, false, "Sign-in session expired, please try again")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.serveCallbackPage(w, false, "Missing authorization code")
		return
	}

	ctx := r.Context()
	token, err := s.app.AuthService.Exchange(ctx, code)
	if err != nil {
		s.app.Logger.Error().Err(err).Msg("OAuth code exchange failed")
		s.serveCallbackPage(w, false, "Authorization code exchange failed")
		return
	}

	email, err := s.app.AuthService.ResolveEmail(ctx, token)
	if err != nil {
		s.app.Logger.Error().Err(err).Msg("Failed to resolve account email")
		s.serveCallbackPage(w, false, "Could not resolve the Google account email")
		return
	}

	if err := s.app.AuthService.SaveTokens(ctx, email, token); err != nil {
		s.app.Logger.Error().Err(err).Str("email", email).Msg("Failed to persist OAuth tokens")
		s.serveCallbackPage(w, false, "Failed to store credentials")
		return
	}

	s.app.Logger.Info().Str("email", email).Msg("YouTube account connected")
	s.serveCallbackPage(w, true, fmt.Sprintf("Connected as %s", email))
}

// serveCallbackPage renders the post-consent page. It posts the outcome to the
// opener window restricted to the configured origin, then closes itself.
func (s *Server) serveCallbackPage(w http.ResponseWriter, success bool, message string) {
	origin := s.app.Config.OAuth.AllowedOrigin

	payload, _ := json.Marshal(map[string]interface{}{
		"type":    "oauth-result",
		"success": success,
		"message": message,
	})
	targetOrigin, _ := json.Marshal(origin)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Tubecast</title></head>
<body>
<p>%s</p>
<script>
if (window.opener) {
  window.opener.postMessage(%s, %s);
  window.close();
}
</script>
</body>
</html>`, message, payload, targetOrigin)
}

// ListTracesHandler returns all workflow traces, newest first
func (s *Server) ListTracesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	traces, err := s.app.StateService.ListTraces(r.Context())
	if err != nil {
		s.app.Logger.Error().Err(err).Msg("Failed to list traces")
		s.writeError(w, http.StatusInternalServerError, "Failed to list traces")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(traces),
		"traces": traces,
	})
}

// GetTraceHandler returns one workflow trace by ID
func (s *Server) GetTraceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	traceID := strings.TrimPrefix(r.URL.Path, "/api/traces/")
	if traceID == "" || strings.Contains(traceID, "/") {
		s.writeError(w, http.StatusBadRequest, "Invalid trace ID")
		return
	}

	trace, err := s.app.StateService.GetTrace(r.Context(), traceID)
	if err != nil {
		if errors.Is(err, interfaces.ErrTraceNotFound) {
			s.writeError(w, http.StatusNotFound, "Trace not found")
			return
		}
		s.app.Logger.Error().Err(err).Str("trace_id", traceID).Msg("Failed to load trace")
		s.writeError(w, http.StatusInternalServerError, "Failed to load trace")
		return
	}

	s.writeJSON(w, http.StatusOK, trace)
}

// StatusHandler reports watcher, scheduler, and account connection state
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connectedEmail := ""
	if user, err := s.app.AuthService.FirstConnectedUser(r.Context()); err == nil {
		connectedEmail = user.Email
	} else if !errors.Is(err, interfaces.ErrNotAuthenticated) {
		s.app.Logger.Warn().Err(err).Msg("Failed to look up connected account")
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"watcherRunning":   s.app.Watcher.IsRunning(),
		"watchDir":         s.app.Config.Watcher.Dir,
		"schedulerRunning": s.app.SchedulerService.IsRunning(),
		"jobs":             s.app.SchedulerService.GetAllJobStatuses(),
		"connectedAccount": connectedEmail,
		"timestamp":        time.Now(),
	})
}

// VersionHandler returns version information
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// HealthHandler is a liveness probe
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ShutdownHandler triggers a graceful shutdown via the channel wired in main
func (s *Server) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.shutdownChan == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Shutdown endpoint not enabled")
		return
	}

	s.app.Logger.Info().Str("remote", r.RemoteAddr).Msg("Shutdown requested via HTTP")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})

	go func() {
		close(s.shutdownChan)
	}()
}

// NotFoundHandler handles unmatched API routes
func (s *Server) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "Not found")
}
