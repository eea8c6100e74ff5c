package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUserAndCapture(t *testing.T, store *Store) *types.Capture {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &types.User{ID: "user-1", Name: "Tester"}))
	capture := &types.Capture{
		ID:      "cap-1",
		UserID:  "user-1",
		Type:    types.CaptureText,
		Content: "remember this",
	}
	require.NoError(t, store.CreateCapture(ctx, capture))
	return capture
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCaptureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)

	capture, err := store.GetCapture(context.Background(), "cap-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", capture.UserID)
	assert.Equal(t, types.CaptureText, capture.Type)
	assert.Equal(t, types.StatusPending, capture.Status)
	assert.False(t, capture.CreatedAt.IsZero())
}

func TestStatusLifecycleForwardOnly(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpdateCaptureStatus(ctx, "cap-1", types.StatusProcessing))
	require.NoError(t, store.UpdateCaptureStatus(ctx, "cap-1", types.StatusCompleted))

	// Completed is terminal; any further transition is rejected.
	err := store.UpdateCaptureStatus(ctx, "cap-1", types.StatusProcessing)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	err = store.UpdateCaptureStatus(ctx, "cap-1", types.StatusPending)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	capture, err := store.GetCapture(ctx, "cap-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, capture.Status)
}

func TestStatusSkipProcessingRejected(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)

	err := store.UpdateCaptureStatus(context.Background(), "cap-1", types.StatusCompleted)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestAddTagsIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.AddTags(ctx, "cap-1", []string{"go", "concurrency"}))
	require.NoError(t, store.AddTags(ctx, "cap-1", []string{"go", "scheduling"}))

	tags, err := store.ListTags(ctx, "cap-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"concurrency", "go", "scheduling"}, tags)
}

func TestAddToCollectionIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.AddToCollection(ctx, "user-1", "cap-1", "golang"))
	require.NoError(t, store.AddToCollection(ctx, "user-1", "cap-1", "golang"))

	members, err := store.ListCollectionMembers(ctx, "user-1", "golang")
	require.NoError(t, err)
	assert.Equal(t, []string{"cap-1"}, members)
}

func TestCreateReminderDeduplicates(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	first := &types.Reminder{
		ID: "rem-1", CaptureID: "cap-1", UserID: "user-1",
		Message: "follow up", ScheduledAt: time.Now().Add(time.Hour),
	}
	created, err := store.CreateReminder(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	// Same capture and message from a retried run: no new row.
	dup := &types.Reminder{
		ID: "rem-2", CaptureID: "cap-1", UserID: "user-1",
		Message: "follow up", ScheduledAt: time.Now().Add(2 * time.Hour),
	}
	created, err = store.CreateReminder(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.GetReminder(ctx, "rem-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveSummaryUpserts(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.SaveSummary(ctx, "cap-1", "v1"))
	require.NoError(t, store.SaveSummary(ctx, "cap-1", "v2"))
}

func TestAddEntitiesIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	entities := []storage.CaptureEntity{
		{Name: "Rob Pike", Kind: "person"},
		{Name: "Google", Kind: "organization"},
	}
	require.NoError(t, store.AddEntities(ctx, "cap-1", entities))
	require.NoError(t, store.AddEntities(ctx, "cap-1", entities))
}

func TestPushRegistrations(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.AddPushRegistration(ctx, "user-1", "device-a"))
	require.NoError(t, store.AddPushRegistration(ctx, "user-1", "device-a"))
	require.NoError(t, store.AddPushRegistration(ctx, "user-1", "device-b"))

	tokens, err := store.ListPushRegistrations(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	require.NoError(t, store.RemovePushRegistration(ctx, "user-1", "device-a"))
	tokens, err = store.ListPushRegistrations(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-b"}, tokens)
}

func TestListRecentCapturesOnlyCompleted(t *testing.T) {
	store := newTestStore(t)
	seedUserAndCapture(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpdateCaptureStatus(ctx, "cap-1", types.StatusProcessing))
	require.NoError(t, store.UpdateCaptureStatus(ctx, "cap-1", types.StatusCompleted))

	pending := &types.Capture{ID: "cap-2", UserID: "user-1", Type: types.CaptureText, Content: "later"}
	require.NoError(t, store.CreateCapture(ctx, pending))

	captures, err := store.ListRecentCaptures(ctx, "user-1", time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "cap-1", captures[0].ID)
}

// --- Jobs ---

func TestJobLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{
		ID:          "job-1",
		Kind:        types.JobCaptureProcessing,
		PayloadJSON: `{"capture_id":"cap-1","user_id":"user-1"}`,
		MaxAttempts: 3,
	}
	require.NoError(t, store.EnqueueJob(ctx, job))

	claimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "job-1", claimed.ID)
	assert.Equal(t, types.JobRunning, claimed.Status)

	// A running job is invisible to further claims.
	again, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, store.CompleteJob(ctx, "job-1"))
}

func TestClaimRespectsRunAfter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	future := &types.Job{
		ID:          "job-future",
		Kind:        types.JobReminderSending,
		PayloadJSON: `{"reminder_id":"rem-1"}`,
		MaxAttempts: 5,
		RunAfter:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, store.EnqueueJob(ctx, future))

	claimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobReminderSending})
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimFiltersKinds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{
		ID:          "job-1",
		Kind:        types.JobPatternLearning,
		PayloadJSON: `{"user_id":"user-1"}`,
		MaxAttempts: 2,
	}
	require.NoError(t, store.EnqueueJob(ctx, job))

	claimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	assert.Nil(t, claimed)

	claimed, err = store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing, types.JobPatternLearning})
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "job-1", claimed.ID)
}

func TestRequeueStaleJobsRecoversCrashedWork(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{
		ID:          "job-1",
		Kind:        types.JobCaptureProcessing,
		PayloadJSON: `{}`,
		MaxAttempts: 3,
	}
	require.NoError(t, store.EnqueueJob(ctx, job))
	claimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// A freshly claimed job is not stale.
	n, err := store.RequeueStaleJobs(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Past the cutoff it goes back to pending and is claimable again.
	n, err = store.RequeueStaleJobs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reclaimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, "job-1", reclaimed.ID)
}

func TestRetryThenDeadLetter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{
		ID:          "job-1",
		Kind:        types.JobCaptureProcessing,
		PayloadJSON: `{}`,
		MaxAttempts: 2,
	}
	require.NoError(t, store.EnqueueJob(ctx, job))

	claimed, err := store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Retry in the past so the job is immediately claimable again.
	require.NoError(t, store.RetryJob(ctx, "job-1", "first failure", time.Now().UTC().Add(-time.Second)))
	claimed, err = store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 1, claimed.Attempts)
	assert.Equal(t, "first failure", claimed.LastError)

	require.NoError(t, store.DeadLetterJob(ctx, "job-1", "second failure"))
	dead, err := store.ListDeadJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "job-1", dead[0].ID)
	assert.Equal(t, types.JobDead, dead[0].Status)
	assert.Equal(t, "second failure", dead[0].LastError)

	// Dead jobs are never claimed.
	claimed, err = store.ClaimNextJob(ctx, []types.JobKind{types.JobCaptureProcessing})
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestCompleteMissingJob(t *testing.T) {
	store := newTestStore(t)
	err := store.CompleteJob(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
