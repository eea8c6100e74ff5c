package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/scrypster/stash/internal/storage"
)

// handlePushSocket upgrades to a websocket and registers it as a delivery
// target. The client picks its token (a stable device identifier) so the
// durable registration survives reconnects.
func (s *Server) handlePushSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "push transport disabled")
		return
	}

	userID := chi.URLParam(r, "userID")
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}
	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		log.Printf("ERROR: gateway: resolve user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("WARNING: gateway: websocket accept: %v", err)
		return
	}

	if err := s.store.AddPushRegistration(r.Context(), userID, token); err != nil {
		log.Printf("ERROR: gateway: add push registration: %v", err)
		_ = conn.Close(websocket.StatusInternalError, "registration failed")
		return
	}
	s.hub.Register(token, conn)
	log.Printf("gateway: push target %s connected for user %s", token, userID)

	// Hold the connection open until the client goes away. The pipeline
	// writes notifications; reads only surface disconnects.
	ctx := conn.CloseRead(context.Background())
	<-ctx.Done()
	s.hub.Unregister(token)
	log.Printf("gateway: push target %s disconnected", token)
}
