// Package gateway exposes the ingestion HTTP surface: webhook capture
// intake, a websocket notification channel, and a small operator API over
// the dead-letter queue.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/queue"
	"github.com/scrypster/stash/internal/storage"
)

// Server is the ingestion gateway.
type Server struct {
	store      storage.Store
	queue      *queue.Queue
	hub        *notify.PushHub
	dispatcher *notify.Dispatcher
	http       *http.Server
}

// New creates the gateway. The hub may be nil when the push transport is
// disabled; the websocket endpoint then reports 503.
func New(addr string, store storage.Store, q *queue.Queue, hub *notify.PushHub, dispatcher *notify.Dispatcher) *Server {
	s := &Server{store: store, queue: q, hub: hub, dispatcher: dispatcher}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/captures", s.handleCreateCapture)
		r.Get("/captures/{captureID}", s.handleGetCapture)
		r.Get("/users/{userID}/push", s.handlePushSocket)
		r.Get("/admin/jobs/dead", s.handleDeadJobs)
		r.Post("/admin/broadcast", s.handleBroadcast)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	log.Printf("gateway: listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: gateway: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
