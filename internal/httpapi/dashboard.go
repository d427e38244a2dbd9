package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/zepef/ai-honeypot/internal/store"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseLimitOffset extracts limit and offset query params, clamping limit
// to [1,200] and offset to >= 0.
func parseLimitOffset(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// withDashboardAuth enforces rate limiting for the dashboard API and, if a
// DASHBOARD_API_KEY is configured, requires a matching Bearer token
// compared in constant time.
func (s *Server) withDashboardAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.dashboardLimiter.Allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if s.cfg.DashboardAPIKey != "" {
			want := "Bearer " + s.cfg.DashboardAPIKey
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		log.Printf("handleStats: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)

	filter := store.SessionFilter{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("escalation_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "escalation_level must be an integer")
			return
		}
		filter.EscalationLevel = &n
	}
	if v := r.URL.Query().Get("since"); v != "" {
		filter.Since = v
	}

	sessions, err := s.store.ListSessions(filter)
	if err != nil {
		log.Printf("handleListSessions: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.store.GetSession(id)
	if err != nil {
		log.Printf("handleGetSession: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionInteractions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.store.GetSession(id)
	if err != nil {
		log.Printf("handleSessionInteractions: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	limit, offset := parseLimitOffset(r)
	interactions, err := s.store.SessionInteractions(id, limit, offset)
	if err != nil {
		log.Printf("handleSessionInteractions: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
}

func (s *Server) handleSessionTokens(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.store.GetSession(id)
	if err != nil {
		log.Printf("handleSessionTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	limit, offset := parseLimitOffset(r)
	tokens, err := s.store.SessionTokens(id, limit, offset)
	if err != nil {
		log.Printf("handleSessionTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	tokenType := r.URL.Query().Get("token_type")

	tokens, err := s.store.ListTokens(tokenType, limit, offset)
	if err != nil {
		log.Printf("handleListTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}
