package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/stash/internal/match"
	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// digestWindow is how far back the proactive agent looks for activity.
const digestWindow = 24 * time.Hour

// Agent handles the periodic background jobs: the proactive digest and
// collection pattern learning.
type Agent struct {
	store      storage.Store
	matcher    *match.Matcher
	dispatcher *notify.Dispatcher
}

// NewAgent creates an Agent. The matcher may be nil when no embedding
// capability is configured; pattern learning then becomes a no-op.
func NewAgent(store storage.Store, matcher *match.Matcher, dispatcher *notify.Dispatcher) *Agent {
	return &Agent{store: store, matcher: matcher, dispatcher: dispatcher}
}

// RunProactiveAgent sends the user a digest of recent activity. A quiet day
// produces no notification at all.
func (a *Agent) RunProactiveAgent(ctx context.Context, payload types.ProactiveAgentPayload) error {
	since := time.Now().UTC().Add(-digestWindow)
	captures, err := a.store.ListRecentCaptures(ctx, payload.UserID, since, 20)
	if err != nil {
		return fmt.Errorf("list recent captures: %w", err)
	}
	if len(captures) == 0 {
		return nil
	}

	collections, err := a.store.ListCollections(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	body := fmt.Sprintf("You saved %d captures in the last day", len(captures))
	if len(collections) > 0 {
		body += fmt.Sprintf(" across %d collections", len(collections))
	}
	body += "."

	result, err := a.dispatcher.Send(ctx, payload.UserID, "digest", types.NotificationPayload{
		Title:    "Your capture digest",
		Body:     body,
		Priority: 2,
		Data:     map[string]interface{}{"capture_count": len(captures)},
	})
	if err != nil {
		return fmt.Errorf("dispatch digest: %w", err)
	}
	if !result.Success {
		log.Printf("pipeline: digest for user %s recorded but not delivered: %s", payload.UserID, result.Reason)
	}
	return nil
}

// LearnPatterns refreshes the matcher's collection candidates from the
// user's current collections, so future captures resolve against names that
// actually exist.
func (a *Agent) LearnPatterns(ctx context.Context, payload types.PatternLearningPayload) error {
	if a.matcher == nil {
		return nil
	}
	collections, err := a.store.ListCollections(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if len(collections) == 0 {
		a.matcher.SetCandidates(payload.UserID, nil)
		return nil
	}

	candidates := a.matcher.EmbedTexts(ctx, collections)
	a.matcher.SetCandidates(payload.UserID, candidates)
	log.Printf("pipeline: refreshed %d/%d collection candidates for user %s",
		len(candidates), len(collections), payload.UserID)
	return nil
}
