// Package storage defines the persistence interfaces for the capture
// pipeline and its job queue. Two implementations exist: sqlite (default)
// and postgres, selected by configuration at startup.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/stash/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a capture status update would move
// the lifecycle backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

// CaptureEntity is a named entity persisted for a capture.
type CaptureEntity struct {
	Name string
	Kind string // person, organization, technology, location
}

// Store is the persistence surface used by the pipeline. All side-effect
// writes are keyed on (captureID, discriminating data) with upsert/ignore
// semantics so a retried job never duplicates them.
type Store interface {
	// GetUser resolves a user by identifier.
	GetUser(ctx context.Context, id string) (*types.User, error)

	// CreateUser registers a user. Used by setup and tests.
	CreateUser(ctx context.Context, user *types.User) error

	// ListUsers returns all registered users. Used by the background
	// scheduler to fan out periodic jobs.
	ListUsers(ctx context.Context) ([]types.User, error)

	// CreateCapture persists a new capture in StatusPending.
	CreateCapture(ctx context.Context, capture *types.Capture) error

	// GetCapture loads a capture by identifier.
	GetCapture(ctx context.Context, id string) (*types.Capture, error)

	// UpdateCaptureStatus moves a capture's lifecycle forward. Transitions
	// that would regress return ErrInvalidTransition.
	UpdateCaptureStatus(ctx context.Context, id string, status types.CaptureStatus) error

	// ListRecentCaptures returns the user's most recently completed captures.
	ListRecentCaptures(ctx context.Context, userID string, since time.Time, limit int) ([]types.Capture, error)

	// AddTags attaches tags to a capture. Already-present tags are ignored.
	AddTags(ctx context.Context, captureID string, tags []string) error

	// ListTags returns a capture's tags.
	ListTags(ctx context.Context, captureID string) ([]string, error)

	// AddToCollection records collection membership. Idempotent per
	// (captureID, collection).
	AddToCollection(ctx context.Context, userID, captureID, collection string) error

	// ListCollections returns the distinct collection names for a user.
	ListCollections(ctx context.Context, userID string) ([]string, error)

	// ListCollectionMembers returns capture ids filed under a collection.
	ListCollectionMembers(ctx context.Context, userID, collection string) ([]string, error)

	// CreateReminder persists a reminder keyed on (captureID, message).
	// Returns false when an identical reminder already exists.
	CreateReminder(ctx context.Context, reminder *types.Reminder) (bool, error)

	// GetReminder loads a reminder by identifier.
	GetReminder(ctx context.Context, id string) (*types.Reminder, error)

	// SaveSummary upserts the capture's summary.
	SaveSummary(ctx context.Context, captureID, summary string) error

	// AddEntities persists extracted entities. Idempotent per
	// (captureID, name, kind).
	AddEntities(ctx context.Context, captureID string, entities []CaptureEntity) error

	// AddCalendarEvent records a calendar event keyed on (captureID, title).
	// Calendar synchronization itself happens outside the pipeline.
	AddCalendarEvent(ctx context.Context, captureID, title string, startsAt time.Time) error

	// CreateNotification persists the durable record of a dispatch.
	CreateNotification(ctx context.Context, notification *types.Notification) error

	// AddPushRegistration registers a delivery target for a user.
	AddPushRegistration(ctx context.Context, userID, token string) error

	// ListPushRegistrations returns a user's delivery targets.
	ListPushRegistrations(ctx context.Context, userID string) ([]string, error)

	// RemovePushRegistration drops a stale delivery target so future
	// dispatches do not repeat the same failure.
	RemovePushRegistration(ctx context.Context, userID, token string) error

	JobStore

	// Close releases the underlying database handle.
	Close() error
}

// JobStore is the durable queue surface. Jobs are claimed in a transaction
// so each is dispatched to exactly one worker at a time; redelivery after a
// crash gives at-least-once semantics.
type JobStore interface {
	// EnqueueJob persists a pending job. RunAfter in the future delays it.
	EnqueueJob(ctx context.Context, job *types.Job) error

	// ClaimNextJob atomically claims the next runnable job of the given
	// kinds, or returns nil when none is due.
	ClaimNextJob(ctx context.Context, kinds []types.JobKind) (*types.Job, error)

	// CompleteJob marks a job completed.
	CompleteJob(ctx context.Context, id string) error

	// RetryJob re-queues a failed job for another attempt at runAfter.
	RetryJob(ctx context.Context, id, errMsg string, runAfter time.Time) error

	// DeadLetterJob moves a job to the dead state for operator inspection.
	DeadLetterJob(ctx context.Context, id, errMsg string) error

	// RequeueStaleJobs returns running jobs untouched for longer than
	// olderThan to pending, recovering work claimed by a process that died
	// before finishing it. Returns how many jobs were requeued.
	RequeueStaleJobs(ctx context.Context, olderThan time.Duration) (int, error)

	// ListDeadJobs returns dead jobs, newest first.
	ListDeadJobs(ctx context.Context, limit int) ([]types.Job, error)
}
