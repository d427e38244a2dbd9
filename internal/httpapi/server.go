// Package httpapi binds the MCP JSON-RPC router to HTTP transport, adding
// body-size limits, session-header validation, sliding-window rate
// limiting, a live SSE event stream, and the read-only dashboard JSON API
// binding a ServeMux, a *http.Server, and a handful of single-purpose
// collaborators (store, bus, router) together.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/zepef/ai-honeypot/internal/config"
	"github.com/zepef/ai-honeypot/internal/eventbus"
	"github.com/zepef/ai-honeypot/internal/mcprouter"
	"github.com/zepef/ai-honeypot/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var sessionIDHeaderPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// router is the subset of mcprouter.Router this package needs, declared
// locally so tests can substitute a fake.
type router interface {
	Route(req mcprouter.Request, sessionID string) (*mcprouter.Response, string)
}

// bus is the subset of eventbus.Bus this package needs.
type bus interface {
	Subscribe() (<-chan struct{}, int64, func())
	EventsSince(since int64) []eventbus.Event
}

// Server is the HTTP transport for the MCP endpoint, the live event
// stream, and the dashboard read-API.
type Server struct {
	cfg    config.Config
	router router
	bus    bus
	store  *store.Store

	mcpLimiter       *Limiter
	dashboardLimiter *Limiter

	liveMu    sync.Mutex
	liveCount int

	mux    *http.ServeMux
	server *http.Server
}

// New creates a Server wired to its collaborators. Call Start to begin
// serving.
func New(cfg config.Config, rt router, b bus, st *store.Store) *Server {
	s := &Server{
		cfg:              cfg,
		router:           rt,
		bus:              b,
		store:            st,
		mcpLimiter:       NewLimiter(cfg.MCPRateLimitRequests, time.Duration(cfg.MCPRateLimitWindowSecs)*time.Second),
		dashboardLimiter: NewLimiter(cfg.DashboardRateLimitRequests, time.Duration(cfg.DashboardRateLimitWindow)*time.Second),
		mux:              http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.withSecurityHeaders(s.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the live-event stream needs no write timeout
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut
// down.
func (s *Server) Start() error {
	log.Printf("internal-devops-tools listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /mcp", s.handleMCP)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events/live", s.handleLiveEvents)

	s.mux.HandleFunc("GET /api/stats", s.withDashboardAuth(s.handleStats))
	s.mux.HandleFunc("GET /api/sessions", s.withDashboardAuth(s.handleListSessions))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.withDashboardAuth(s.handleGetSession))
	s.mux.HandleFunc("GET /api/sessions/{id}/interactions", s.withDashboardAuth(s.handleSessionInteractions))
	s.mux.HandleFunc("GET /api/sessions/{id}/tokens", s.withDashboardAuth(s.handleSessionTokens))
	s.mux.HandleFunc("GET /api/tokens", s.withDashboardAuth(s.handleListTokens))
}

// withSecurityHeaders applies the fixed response headers and CORS-echo
// rule every response carries, centralizing cross-cutting HTTP concerns
// in one wrapper.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")

		if origin := r.Header.Get("Origin"); origin != "" && s.cfg.CORSOrigin != "" && origin == s.cfg.CORSOrigin {
			h.Set("Access-Control-Allow-Origin", origin)
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"server":  mcprouter.ServerName,
		"version": mcprouter.ServerVersion,
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct := r.Header.Get("Content-Type")
	if ct != "application/json" && !hasJSONPrefix(ct) {
		writeJSONRPCError(w, http.StatusBadRequest, mcprouter.CodeParseError, "Parse error")
		return
	}

	var req mcprouter.Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, mcprouter.CodeParseError, "Parse error")
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID != "" && !sessionIDHeaderPattern.MatchString(sessionID) {
		writeJSONRPCError(w, http.StatusBadRequest, mcprouter.CodeInvalidRequest, "Invalid Request")
		return
	}

	limitKey := sessionID
	if limitKey == "" {
		limitKey = r.RemoteAddr
	}
	if !s.mcpLimiter.Allow(limitKey) {
		writeJSONRPCError(w, http.StatusTooManyRequests, mcprouter.CodeRateLimit, "Rate limit exceeded")
		return
	}

	resp, newSessionID := s.router.Route(req, sessionID)
	if newSessionID != "" {
		w.Header().Set("Mcp-Session-Id", newSessionID)
	}

	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func hasJSONPrefix(contentType string) bool {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			return contentType[:i] == "application/json"
		}
	}
	return false
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, mcprouter.Response{JSONRPC: "2.0", Error: &mcprouter.Error{Code: code, Message: message}})
}
