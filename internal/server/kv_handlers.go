package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/tubecast/internal/interfaces"
)

// Settings endpoints. The mailer reads its SMTP credentials from key/value
// storage, so this is also how an operator configures email notifications
// (smtp_host, smtp_port, smtp_username, smtp_password, smtp_from).

// ListKVHandler returns all stored settings with masked values
func (s *Server) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pairs, err := s.app.KVService.List(r.Context())
	if err != nil {
		s.app.Logger.Error().Err(err).Msg("Failed to list settings")
		s.writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}

	entries := make([]map[string]interface{}, len(pairs))
	for i, pair := range pairs {
		entries[i] = map[string]interface{}{
			"key":         pair.Key,
			"value":       maskValue(pair.Value),
			"description": pair.Description,
			"created_at":  pair.CreatedAt,
			"updated_at":  pair.UpdatedAt,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entries),
		"settings": entries,
	})
}

// KVItemHandler serves GET, PUT, and DELETE for a single setting key
func (s *Server) KVItemHandler(w http.ResponseWriter, r *http.Request) {
	key, err := url.QueryUnescape(strings.TrimPrefix(r.URL.Path, "/api/kv/"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid key encoding")
		return
	}
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getKV(w, r, key)
	case http.MethodPut:
		s.putKV(w, r, key)
	case http.MethodDelete:
		s.deleteKV(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getKV returns the full unmasked value for editing
func (s *Server) getKV(w http.ResponseWriter, r *http.Request, key string) {
	value, err := s.app.KVService.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			s.writeError(w, http.StatusNotFound, "Key not found")
			return
		}
		s.app.Logger.Error().Err(err).Str("key", key).Msg("Failed to get setting")
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve setting")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

func (s *Server) putKV(w http.ResponseWriter, r *http.Request, key string) {
	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Value == "" {
		s.writeError(w, http.StatusBadRequest, "Value is required")
		return
	}

	if err := s.app.KVService.Set(r.Context(), key, req.Value, req.Description); err != nil {
		s.app.Logger.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		s.writeError(w, http.StatusInternalServerError, "Failed to store setting")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"key":    key,
	})
}

func (s *Server) deleteKV(w http.ResponseWriter, r *http.Request, key string) {
	if err := s.app.KVService.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			s.writeError(w, http.StatusNotFound, "Key not found")
			return
		}
		s.app.Logger.Error().Err(err).Str("key", key).Msg("Failed to delete setting")
		s.writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"key":    key,
	})
}

// maskValue hides most of a stored value in list responses; credentials like
// smtp_password live in the same table as harmless settings
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
