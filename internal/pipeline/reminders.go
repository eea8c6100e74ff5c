package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// ReminderSender handles reminder-sending jobs.
type ReminderSender struct {
	store      storage.Store
	dispatcher *notify.Dispatcher
}

// NewReminderSender creates a ReminderSender.
func NewReminderSender(store storage.Store, dispatcher *notify.Dispatcher) *ReminderSender {
	return &ReminderSender{store: store, dispatcher: dispatcher}
}

// SendReminder delivers one due reminder. A reminder that no longer exists
// is not an error; retrying would not bring it back.
func (r *ReminderSender) SendReminder(ctx context.Context, payload types.ReminderSendingPayload) error {
	reminder, err := r.store.GetReminder(ctx, payload.ReminderID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("WARNING: pipeline: reminder %s no longer exists, dropping", payload.ReminderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reminder %s: %w", payload.ReminderID, err)
	}

	result, err := r.dispatcher.Send(ctx, reminder.UserID, "reminder", types.NotificationPayload{
		Title:    "Reminder",
		Body:     reminder.Message,
		Priority: 8,
		Data: map[string]interface{}{
			"capture_id":  reminder.CaptureID,
			"reminder_id": reminder.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("dispatch reminder %s: %w", reminder.ID, err)
	}
	if !result.Success {
		log.Printf("pipeline: reminder %s recorded but not delivered: %s", reminder.ID, result.Reason)
	}
	return nil
}
