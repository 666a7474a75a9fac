// Package server implements the tempo HTTP server: REST API, JWT auth,
// and the SSE live event feed.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/tempo/config"
	"github.com/GoCodeAlone/tempo/notify"
	"github.com/GoCodeAlone/tempo/plan"
	"github.com/GoCodeAlone/tempo/remind"
	"github.com/GoCodeAlone/tempo/server/api"
	"github.com/GoCodeAlone/tempo/server/ws"
	"github.com/GoCodeAlone/tempo/task"
)

// Server is the tempo HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	store     task.Store
	planner   *plan.Planner
	reminders *remind.Scheduler
	bus       *notify.Bus
	hub       *ws.Hub
	handlers  *api.Handlers

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	unsubBus func()

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		hub:       ws.NewHub(logger),
		startTime: time.Now(),
		version:   ver,
	}
}

// SetStore attaches a task store to the server.
func (s *Server) SetStore(store task.Store) {
	s.store = store
}

// SetPlanner attaches the ordering planner to the server.
func (s *Server) SetPlanner(p *plan.Planner) {
	s.planner = p
}

// SetReminders attaches the reminder scheduler to the server.
func (s *Server) SetReminders(r *remind.Scheduler) {
	s.reminders = r
}

// SetBus attaches the event bus; bus events are forwarded to SSE clients.
func (s *Server) SetBus(bus *notify.Bus) {
	s.bus = bus
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	if s.bus != nil {
		s.unsubBus = s.bus.Subscribe(func(e notify.Event) {
			s.hub.Broadcast(ws.Event{Type: string(e.Type), Payload: e})
		})
	}

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubBus != nil {
		s.unsubBus()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Store:     s.store,
		Planner:   s.planner,
		Reminders: s.reminders,
		Bus:       s.bus,
		Logger:    s.logger,
		Version:   s.version,
		StartAt:   s.startTime.Unix(),
	}
	s.handlers = h

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", h.StatusHandler())

	// SSE — auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API — wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// handleSSE validates the query-param token and hands the connection to
// the hub.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token != "" {
		if _, err := s.verifyToken(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.hub.ServeSSE(w, r)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
