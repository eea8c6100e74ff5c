package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/internal/match"
	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/queue"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// Executor applies a capture's action plan. Every write is keyed on the
// capture plus discriminating data, so re-applying a plan after a retry
// cannot duplicate side effects.
type Executor struct {
	store      storage.Store
	queue      *queue.Queue
	matcher    *match.Matcher
	dispatcher *notify.Dispatcher
	now        func() time.Time
}

// NewExecutor creates an Executor. The matcher may be nil when no embedding
// capability is configured; suggested collection names are then used as-is.
func NewExecutor(store storage.Store, q *queue.Queue, matcher *match.Matcher, dispatcher *notify.Dispatcher) *Executor {
	return &Executor{store: store, queue: q, matcher: matcher, dispatcher: dispatcher, now: time.Now}
}

// Apply executes the plan's actions in priority order, highest first, with
// the plan's own ordering breaking ties. Storage errors abort and surface to
// the job layer for retry; everything else is logged and skipped.
func (e *Executor) Apply(ctx context.Context, capture *types.Capture, result analyzer.Result, dl types.ExtractedDeadline, plan *types.ActionPlan) error {
	actions := make([]types.Action, len(plan.Actions))
	copy(actions, plan.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})

	for _, action := range actions {
		if err := e.apply(ctx, capture, result, dl, action); err != nil {
			return fmt.Errorf("action %s: %w", action.Type, err)
		}
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, capture *types.Capture, result analyzer.Result, dl types.ExtractedDeadline, action types.Action) error {
	switch action.Type {
	case types.ActionAddTag:
		return e.addTags(ctx, capture, action)
	case types.ActionAddToCollection:
		return e.addToCollection(ctx, capture, result, action)
	case types.ActionCreateReminder:
		return e.createReminder(ctx, capture, action)
	case types.ActionCreateCalendarEvent:
		return e.createCalendarEvent(ctx, capture, dl, action)
	case types.ActionNotify:
		return e.sendNotification(ctx, capture, action)
	case types.ActionSummarize:
		return e.saveSummary(ctx, capture, result)
	case types.ActionExtractEntities:
		return e.saveEntities(ctx, capture, result)
	default:
		// The planner filters unknown types; reaching here means a new type
		// was added without an executor arm.
		log.Printf("WARNING: executor: no handler for action type %q, skipping", action.Type)
		return nil
	}
}

func (e *Executor) addTags(ctx context.Context, capture *types.Capture, action types.Action) error {
	tags := stringSlice(action.Data["tags"])
	if len(tags) == 0 {
		return nil
	}
	return e.store.AddTags(ctx, capture.ID, tags)
}

// addToCollection resolves the suggested collection against existing ones by
// embedding similarity before filing, so near-duplicate collections
// ("golang" vs "Go") collapse onto the established name.
func (e *Executor) addToCollection(ctx context.Context, capture *types.Capture, result analyzer.Result, action types.Action) error {
	suggested, _ := action.Data["collection"].(string)
	if suggested == "" {
		return nil
	}
	name := suggested
	if e.matcher != nil {
		matchText := result.Analysis.Title + " " + result.Analysis.Description
		if resolved, matched := e.matcher.Resolve(ctx, capture.UserID, suggested, matchText); matched {
			log.Printf("executor: collection %q resolved to existing %q", suggested, resolved)
			name = resolved
		}
	}
	return e.store.AddToCollection(ctx, capture.UserID, capture.ID, name)
}

// createReminder persists the reminder and, only when this run actually
// created it, schedules its delivery job. A reminder whose due time already
// passed is delivered immediately rather than pushed into the future.
func (e *Executor) createReminder(ctx context.Context, capture *types.Capture, action types.Action) error {
	message, _ := action.Data["message"].(string)
	if message == "" {
		message = "Follow up on a saved capture"
	}
	scheduledAt := e.now().UTC().Add(time.Hour)
	if raw, _ := action.Data["scheduled_at"].(string); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			scheduledAt = t.UTC()
		} else {
			log.Printf("WARNING: executor: unparseable reminder time %q, using default", raw)
		}
	}

	reminder := &types.Reminder{
		ID:          uuid.New().String(),
		CaptureID:   capture.ID,
		UserID:      capture.UserID,
		Message:     message,
		ScheduledAt: scheduledAt,
	}
	created, err := e.store.CreateReminder(ctx, reminder)
	if err != nil {
		return err
	}
	if !created {
		return nil // identical reminder from a previous run already exists
	}
	_, err = e.queue.EnqueueReminder(ctx, reminder.ID, scheduledAt)
	return err
}

func (e *Executor) createCalendarEvent(ctx context.Context, capture *types.Capture, dl types.ExtractedDeadline, action types.Action) error {
	title, _ := action.Data["title"].(string)
	if title == "" {
		return nil
	}
	startsAt := e.now().UTC().Add(24 * time.Hour)
	if raw, _ := action.Data["starts_at"].(string); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			startsAt = t.UTC()
		}
	} else if dl.HasDeadline && dl.Deadline != nil {
		startsAt = *dl.Deadline
	}
	return e.store.AddCalendarEvent(ctx, capture.ID, title, startsAt)
}

func (e *Executor) sendNotification(ctx context.Context, capture *types.Capture, action types.Action) error {
	title, _ := action.Data["title"].(string)
	body, _ := action.Data["body"].(string)
	if title == "" {
		title = "Capture saved"
	}
	result, err := e.dispatcher.Send(ctx, capture.UserID, "capture", types.NotificationPayload{
		Title:    title,
		Body:     body,
		Priority: action.Priority,
		Data:     map[string]interface{}{"capture_id": capture.ID},
	})
	if err != nil {
		return err
	}
	if !result.Success {
		log.Printf("executor: notification for capture %s recorded but not delivered: %s", capture.ID, result.Reason)
	}
	return nil
}

// saveSummary composes the summary from what analysis already produced. No
// extra inference call: by the time an action plan exists the analyzer has
// either succeeded or degraded, and a second call would not improve either.
func (e *Executor) saveSummary(ctx context.Context, capture *types.Capture, result analyzer.Result) error {
	var parts []string
	if result.Analysis.Description != "" {
		parts = append(parts, result.Analysis.Description)
	}
	for _, takeaway := range result.Analysis.KeyTakeaways {
		parts = append(parts, "- "+takeaway)
	}
	if len(parts) == 0 {
		return nil
	}
	return e.store.SaveSummary(ctx, capture.ID, strings.Join(parts, "\n"))
}

func (e *Executor) saveEntities(ctx context.Context, capture *types.Capture, result analyzer.Result) error {
	var entities []storage.CaptureEntity
	for _, name := range result.Analysis.Entities.People {
		entities = append(entities, storage.CaptureEntity{Name: name, Kind: "person"})
	}
	for _, name := range result.Analysis.Entities.Organizations {
		entities = append(entities, storage.CaptureEntity{Name: name, Kind: "organization"})
	}
	for _, name := range result.Analysis.Entities.Technologies {
		entities = append(entities, storage.CaptureEntity{Name: name, Kind: "technology"})
	}
	for _, name := range result.Analysis.Entities.Locations {
		entities = append(entities, storage.CaptureEntity{Name: name, Kind: "location"})
	}
	if len(entities) == 0 {
		return nil
	}
	return e.store.AddEntities(ctx, capture.ID, entities)
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
