package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// createCaptureRequest is the webhook ingestion body. Source identifies the
// sending integration and lands in the capture metadata.
type createCaptureRequest struct {
	UserID   string                 `json:"user_id"`
	Type     string                 `json:"type"`
	Content  string                 `json:"content"`
	Context  string                 `json:"context"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata"`
}

type captureResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateCapture ingests a capture and schedules its processing. The
// response returns immediately with the pending capture; all understanding
// happens asynchronously.
func (s *Server) handleCreateCapture(w http.ResponseWriter, r *http.Request) {
	var req createCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Type == "" {
		req.Type = string(types.CaptureText)
	}
	captureType := types.CaptureType(req.Type)
	if !types.IsValidCaptureType(captureType) {
		writeError(w, http.StatusBadRequest, "unknown capture type: "+req.Type)
		return
	}

	if _, err := s.store.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		log.Printf("ERROR: gateway: resolve user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if req.Source != "" {
		metadata["source"] = req.Source
	}

	capture := &types.Capture{
		ID:       uuid.New().String(),
		UserID:   req.UserID,
		Type:     captureType,
		Content:  req.Content,
		Context:  req.Context,
		Metadata: metadata,
	}
	if err := s.store.CreateCapture(r.Context(), capture); err != nil {
		log.Printf("ERROR: gateway: create capture: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := s.queue.EnqueueCaptureProcessing(r.Context(), capture.ID, capture.UserID); err != nil {
		// The capture row exists; an operator can re-enqueue it. Failing the
		// request here would make the client re-send and duplicate the capture.
		log.Printf("ERROR: gateway: enqueue processing for capture %s: %v", capture.ID, err)
	}

	writeJSON(w, http.StatusAccepted, captureResponse{
		ID:        capture.ID,
		UserID:    capture.UserID,
		Type:      string(capture.Type),
		Status:    string(types.StatusPending),
		CreatedAt: capture.CreatedAt,
	})
}

type captureDetailResponse struct {
	captureResponse
	Content   string    `json:"content"`
	Context   string    `json:"context,omitempty"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleGetCapture returns a capture and its accumulated tags, letting
// clients poll processing progress via the status field.
func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	captureID := chi.URLParam(r, "captureID")
	capture, err := s.store.GetCapture(r.Context(), captureID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "capture not found")
		return
	}
	if err != nil {
		log.Printf("ERROR: gateway: get capture: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tags, err := s.store.ListTags(r.Context(), captureID)
	if err != nil {
		log.Printf("ERROR: gateway: list tags: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tags == nil {
		tags = []string{}
	}

	writeJSON(w, http.StatusOK, captureDetailResponse{
		captureResponse: captureResponse{
			ID:        capture.ID,
			UserID:    capture.UserID,
			Type:      string(capture.Type),
			Status:    string(capture.Status),
			CreatedAt: capture.CreatedAt,
		},
		Content:   capture.Content,
		Context:   capture.Context,
		Tags:      tags,
		UpdatedAt: capture.UpdatedAt,
	})
}

type deadJobResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleDeadJobs lists dead-lettered jobs for operator inspection.
func (s *Server) handleDeadJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListDeadJobs(r.Context(), 100)
	if err != nil {
		log.Printf("ERROR: gateway: list dead jobs: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]deadJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, deadJobResponse{
			ID:        job.ID,
			Kind:      string(job.Kind),
			Attempts:  job.Attempts,
			LastError: job.LastError,
			UpdatedAt: job.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}
