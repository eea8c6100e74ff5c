package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/queue"
	"github.com/scrypster/stash/internal/storage/sqlite"
	"github.com/scrypster/stash/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateUser(context.Background(), &types.User{ID: "user-1", Name: "Tester"}))
	return New("127.0.0.1:0", store, queue.New(store), nil, notify.NewDispatcher(store, nil)), store
}

func postCapture(t *testing.T, s *Server, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/v1/captures", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateCaptureAccepted(t *testing.T) {
	s, store := newTestServer(t)

	rec := postCapture(t, s, map[string]interface{}{
		"user_id": "user-1",
		"type":    "link",
		"content": "https://example.com/article",
		"source":  "browser-extension",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp captureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "link", resp.Type)

	// The capture row exists and a processing job is claimable.
	capture, err := store.GetCapture(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, capture.Status)
	assert.Equal(t, "browser-extension", capture.Metadata["source"])

	job, err := store.ClaimNextJob(context.Background(), []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, job)
	var payload types.CaptureProcessingPayload
	require.NoError(t, types.UnmarshalPayload(job.PayloadJSON, &payload))
	assert.Equal(t, resp.ID, payload.CaptureID)
}

func TestCreateCaptureDefaultsToText(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postCapture(t, s, map[string]interface{}{
		"user_id": "user-1",
		"content": "remember to buy milk",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp captureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text", resp.Type)
}

func TestCreateCaptureUnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postCapture(t, s, map[string]interface{}{
		"user_id": "nobody",
		"content": "hello",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCaptureValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postCapture(t, s, map[string]interface{}{"user_id": "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCapture(t, s, map[string]interface{}{
		"user_id": "user-1", "content": "x", "type": "hologram",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest("POST", "/api/v1/captures", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCapture(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	capture := &types.Capture{ID: "cap-1", UserID: "user-1", Type: types.CaptureText, Content: "note"}
	require.NoError(t, store.CreateCapture(ctx, capture))
	require.NoError(t, store.AddTags(ctx, "cap-1", []string{"todo"}))

	req := httptest.NewRequest("GET", "/api/v1/captures/cap-1", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp captureDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cap-1", resp.ID)
	assert.Equal(t, "note", resp.Content)
	assert.Equal(t, []string{"todo"}, resp.Tags)
}

func TestGetCaptureNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/captures/ghost", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeadJobsEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	job := &types.Job{ID: "job-1", Kind: types.JobCaptureProcessing, PayloadJSON: `{}`, MaxAttempts: 1}
	require.NoError(t, store.EnqueueJob(ctx, job))
	require.NoError(t, store.DeadLetterJob(ctx, "job-1", "exhausted"))

	req := httptest.NewRequest("GET", "/api/v1/admin/jobs/dead", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []deadJobResponse `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "job-1", resp.Jobs[0].ID)
	assert.Equal(t, "exhausted", resp.Jobs[0].LastError)
}

func TestBroadcastReachesAllUsers(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &types.User{ID: "user-2", Name: "Second"}))

	raw, err := json.Marshal(map[string]interface{}{
		"title": "Maintenance window", "body": "tonight", "priority": 3,
	})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/v1/admin/broadcast", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp broadcastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Recipients)
	// The test dispatcher has no transport, so every dispatch records a miss.
	assert.Zero(t, resp.Sent)
	assert.Equal(t, 2, resp.Missed)
}

func TestBroadcastRequiresTitle(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/admin/broadcast", bytes.NewReader([]byte(`{"body": "no title"}`)))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPushSocketDisabled(t *testing.T) {
	s, _ := newTestServer(t) // nil hub

	req := httptest.NewRequest("GET", "/api/v1/users/user-1/push?token=dev", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
