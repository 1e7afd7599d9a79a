// Package server exposes the session operations over HTTP plus a websocket
// that pushes session change events to UI clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/session"
)

// Service is the session surface the server exposes. *controller.Controller
// implements it.
type Service interface {
	CreateSession(ctx context.Context, title string) (*domain.Session, error)
	SwitchSession(ctx context.Context, id string) error
	ClearActiveSession(ctx context.Context) error
	DeleteSession(ctx context.Context, id string) error
	RenameSession(ctx context.Context, id, title string)
	ListSessions(ctx context.Context) []domain.Session
	GetSession(ctx context.Context, id string) *domain.Session
	ActiveSession() *domain.Session
	ActiveSessionID() string
	Invoke(ctx context.Context) error
	Subscribe() <-chan session.Event
}

// Server serves the REST API and the event websocket.
type Server struct {
	svc Service
	srv *http.Server
}

// New creates a new Server.
func New(svc Service) *Server {
	return &Server{svc: svc}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting canvas server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Handler builds the route mux. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleRenameSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/activate", s.handleActivateSession)

	// Active pointer
	mux.HandleFunc("GET /api/active", s.handleGetActive)
	mux.HandleFunc("DELETE /api/active", s.handleClearActive)

	// Agent run trigger
	mux.HandleFunc("POST /api/invoke", s.handleInvoke)

	// WebSocket event push
	mux.HandleFunc("/api/events", s.handleEventsWebSocket)

	return s.corsMiddleware(mux)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
