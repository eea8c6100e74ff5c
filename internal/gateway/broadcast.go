package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/scrypster/stash/pkg/types"
)

type broadcastRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority int    `json:"priority"`
}

type broadcastResponse struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Missed     int `json:"missed"`
}

// handleBroadcast sends one announcement to every registered user. Delivery
// is independent per recipient; the response reports aggregate counts.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list users")
		return
	}
	userIDs := make([]string, len(users))
	for i, user := range users {
		userIDs[i] = user.ID
	}

	batch, err := s.dispatcher.SendBatch(r.Context(), userIDs, "announcement", types.NotificationPayload{
		Title:    req.Title,
		Body:     req.Body,
		Priority: req.Priority,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	writeJSON(w, http.StatusOK, broadcastResponse{
		Recipients: len(userIDs),
		Sent:       batch.Sent,
		Missed:     batch.Missed,
	})
}
