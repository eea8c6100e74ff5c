package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind identifies the kind of asynchronous work a job carries.
type JobKind string

// Job kinds processed by the queue. Each kind has its own typed payload and
// retry policy; dispatch is a closed switch over kind, never duck-typed
// field access.
const (
	JobCaptureProcessing JobKind = "capture-processing"
	JobReminderSending   JobKind = "reminder-sending"
	JobProactiveAgent    JobKind = "proactive-agent"
	JobPatternLearning   JobKind = "pattern-learning"
)

// ValidJobKinds contains all recognized job kinds.
var ValidJobKinds = []JobKind{
	JobCaptureProcessing,
	JobReminderSending,
	JobProactiveAgent,
	JobPatternLearning,
}

// IsValidJobKind checks whether k is a recognized job kind.
func IsValidJobKind(k JobKind) bool {
	for _, v := range ValidJobKinds {
		if k == v {
			return true
		}
	}
	return false
}

// JobStatus is the queue-side lifecycle of a job.
type JobStatus string

const (
	// JobPending means the job is waiting to be claimed (run_after may be in the future).
	JobPending JobStatus = "pending"

	// JobRunning means a worker has claimed the job.
	JobRunning JobStatus = "running"

	// JobCompleted means the job finished successfully.
	JobCompleted JobStatus = "completed"

	// JobDead means the job exhausted its attempts and awaits operator
	// inspection. Dead jobs are never retried automatically.
	JobDead JobStatus = "dead"
)

// Job is a durable unit of asynchronous work. The payload references
// entities by identifier only so retries always re-read current data.
type Job struct {
	ID          string
	Kind        JobKind
	PayloadJSON string
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CaptureProcessingPayload is the payload for capture-processing jobs.
type CaptureProcessingPayload struct {
	CaptureID string `json:"capture_id"`
	UserID    string `json:"user_id"`
}

// ReminderSendingPayload is the payload for reminder-sending jobs.
type ReminderSendingPayload struct {
	ReminderID string `json:"reminder_id"`
}

// ProactiveAgentPayload is the payload for proactive-agent jobs.
type ProactiveAgentPayload struct {
	UserID string `json:"user_id"`
}

// PatternLearningPayload is the payload for pattern-learning jobs.
type PatternLearningPayload struct {
	UserID string `json:"user_id"`
}

// MarshalPayload encodes a typed payload for storage in a job row.
func MarshalPayload(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}
	return string(data), nil
}

// UnmarshalPayload decodes a job row's payload into the typed destination.
func UnmarshalPayload(payloadJSON string, dst interface{}) error {
	if err := json.Unmarshal([]byte(payloadJSON), dst); err != nil {
		return fmt.Errorf("unmarshal job payload: %w", err)
	}
	return nil
}
