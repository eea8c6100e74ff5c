// Package notify dispatches notifications. Every dispatch writes a durable
// record first; actual delivery happens over whichever transport the user
// has registered. A dispatch with no delivery target is not an error, it
// simply reports Success false with a reason.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// ErrStaleTarget marks a delivery target that is permanently gone. The
// dispatcher removes the registration so the failure does not repeat.
var ErrStaleTarget = errors.New("stale delivery target")

// Transport delivers a payload to one registered target.
type Transport interface {
	// Deliver pushes the payload to the target. Returning an error wrapping
	// ErrStaleTarget drops the registration.
	Deliver(ctx context.Context, userID, token string, payload types.NotificationPayload) error

	// Name identifies the transport in records and logs.
	Name() string
}

// Result reports the outcome of one dispatch.
type Result struct {
	Success   bool
	MessageID string
	Reason    string
}

// BatchResult aggregates the outcome of a batch dispatch.
type BatchResult struct {
	Sent   int
	Missed int
}

// Dispatcher persists and delivers notifications.
type Dispatcher struct {
	store     storage.Store
	transport Transport
}

// NewDispatcher creates a dispatcher. A nil transport records notifications
// without attempting delivery.
func NewDispatcher(store storage.Store, transport Transport) *Dispatcher {
	return &Dispatcher{store: store, transport: transport}
}

// Send records the notification and delivers it to the user's registered
// targets. The durable record is written even when no delivery happens, so
// the in-app notification list stays complete.
func (d *Dispatcher) Send(ctx context.Context, userID, notifType string, payload types.NotificationPayload) (Result, error) {
	record := &types.Notification{
		ID:       uuid.New().String(),
		UserID:   userID,
		Type:     notifType,
		Title:    payload.Title,
		Body:     payload.Body,
		Metadata: payload.Data,
	}
	if err := d.store.CreateNotification(ctx, record); err != nil {
		return Result{}, fmt.Errorf("record notification: %w", err)
	}

	if d.transport == nil {
		return Result{Success: false, MessageID: record.ID, Reason: "no delivery transport"}, nil
	}

	tokens, err := d.store.ListPushRegistrations(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("list delivery targets: %w", err)
	}
	if len(tokens) == 0 {
		return Result{Success: false, MessageID: record.ID, Reason: "no delivery target"}, nil
	}

	delivered := 0
	for _, token := range tokens {
		err := d.transport.Deliver(ctx, userID, token, payload)
		if err == nil {
			delivered++
			continue
		}
		if errors.Is(err, ErrStaleTarget) {
			log.Printf("notify: removing stale %s target for user %s", d.transport.Name(), userID)
			if rmErr := d.store.RemovePushRegistration(ctx, userID, token); rmErr != nil {
				log.Printf("ERROR: notify: remove stale target: %v", rmErr)
			}
			continue
		}
		log.Printf("WARNING: notify: deliver to user %s via %s: %v", userID, d.transport.Name(), err)
	}

	if delivered == 0 {
		return Result{Success: false, MessageID: record.ID, Reason: "all deliveries failed"}, nil
	}
	return Result{Success: true, MessageID: record.ID}, nil
}

// SendBatch fans one payload out to several recipients concurrently and
// reports aggregate counts. Each recipient's dispatch is independent: a
// failure for one counts as a miss and never aborts the rest.
func (d *Dispatcher) SendBatch(ctx context.Context, userIDs []string, notifType string, payload types.NotificationPayload) (BatchResult, error) {
	results := make([]Result, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			res, err := d.Send(gctx, userID, notifType, payload)
			if err != nil {
				log.Printf("ERROR: notify: batch send to user %s: %v", userID, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	var batch BatchResult
	for _, res := range results {
		if res.Success {
			batch.Sent++
		} else {
			batch.Missed++
		}
	}
	return batch, nil
}
