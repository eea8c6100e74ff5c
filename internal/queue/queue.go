// Package queue provides the durable job queue and its worker pool. Jobs
// live in the jobs table of the primary store; enqueueing a job and the
// write that motivated it therefore share one database.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// Queue enqueues typed jobs onto the durable store.
type Queue struct {
	store storage.JobStore
}

// New creates a queue over the given job store.
func New(store storage.JobStore) *Queue {
	return &Queue{store: store}
}

// Enqueue persists a job of the given kind with a typed payload. The
// returned id identifies the job for later inspection.
func (q *Queue) Enqueue(ctx context.Context, kind types.JobKind, payload interface{}) (string, error) {
	return q.EnqueueAfter(ctx, kind, payload, 0)
}

// EnqueueAfter persists a job that becomes runnable after the delay. A
// non-positive delay makes it runnable immediately; scheduling a reminder
// whose due time already passed must not push it further into the future.
func (q *Queue) EnqueueAfter(ctx context.Context, kind types.JobKind, payload interface{}, delay time.Duration) (string, error) {
	if !types.IsValidJobKind(kind) {
		return "", fmt.Errorf("enqueue: unknown job kind %q", kind)
	}
	payloadJSON, err := types.MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	if delay < 0 {
		delay = 0
	}
	policy := PolicyFor(kind)
	job := &types.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		PayloadJSON: payloadJSON,
		MaxAttempts: policy.MaxAttempts,
		RunAfter:    time.Now().UTC().Add(delay),
	}
	if err := q.store.EnqueueJob(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// EnqueueCaptureProcessing schedules analysis of a freshly ingested capture.
func (q *Queue) EnqueueCaptureProcessing(ctx context.Context, captureID, userID string) (string, error) {
	return q.Enqueue(ctx, types.JobCaptureProcessing, types.CaptureProcessingPayload{
		CaptureID: captureID,
		UserID:    userID,
	})
}

// EnqueueReminder schedules delivery of a reminder at its due time.
func (q *Queue) EnqueueReminder(ctx context.Context, reminderID string, scheduledAt time.Time) (string, error) {
	delay := time.Until(scheduledAt)
	return q.EnqueueAfter(ctx, types.JobReminderSending, types.ReminderSendingPayload{
		ReminderID: reminderID,
	}, delay)
}
