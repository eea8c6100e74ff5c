package types

import "time"

// NotificationPayload is what callers hand to the dispatcher.
type NotificationPayload struct {
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Action   string                 `json:"action,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Priority int                    `json:"priority,omitempty"`
}

// Notification is the durable record of a delivered (or attempted)
// notification. Read/unread state is mutated only by the consuming client,
// never by the pipeline.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	Metadata  map[string]interface{}
	IsRead    bool
	CreatedAt time.Time
}

// Reminder is a scheduled follow-up for a capture. Reminders fire via
// reminder-sending jobs with delay max(0, ScheduledAt-now).
type Reminder struct {
	ID          string
	CaptureID   string
	UserID      string
	Message     string
	ScheduledAt time.Time
	CreatedAt   time.Time
}
