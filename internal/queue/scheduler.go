package queue

import (
	"context"
	"log"
	"time"

	"github.com/scrypster/stash/pkg/types"
)

// UserLister enumerates users for periodic job fan-out.
type UserLister interface {
	ListUsers(ctx context.Context) ([]types.User, error)
}

// Intervals for the periodic background jobs.
const (
	digestInterval          = 24 * time.Hour
	patternLearningInterval = 6 * time.Hour
)

// Scheduler enqueues the recurring background jobs for every registered
// user. Fan-out happens on a ticker per kind; the jobs themselves carry
// only the user id, so a re-enqueue during a slow run is harmless.
type Scheduler struct {
	users  UserLister
	queue  *Queue
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler over the given user source and queue.
func NewScheduler(users UserLister, queue *Queue) *Scheduler {
	return &Scheduler{users: users, queue: queue, done: make(chan struct{})}
}

// Start launches the scheduling loop. Pattern learning runs once at startup
// so the collection matcher is primed before the first capture arrives.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop halts the scheduling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.fanOut(ctx, types.JobPatternLearning)

	digests := time.NewTicker(digestInterval)
	patterns := time.NewTicker(patternLearningInterval)
	defer digests.Stop()
	defer patterns.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-digests.C:
			s.fanOut(ctx, types.JobProactiveAgent)
		case <-patterns.C:
			s.fanOut(ctx, types.JobPatternLearning)
		}
	}
}

func (s *Scheduler) fanOut(ctx context.Context, kind types.JobKind) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		log.Printf("ERROR: scheduler: list users for %s fan-out: %v", kind, err)
		return
	}
	for _, user := range users {
		var payload interface{}
		switch kind {
		case types.JobProactiveAgent:
			payload = types.ProactiveAgentPayload{UserID: user.ID}
		case types.JobPatternLearning:
			payload = types.PatternLearningPayload{UserID: user.ID}
		default:
			return
		}
		if _, err := s.queue.Enqueue(ctx, kind, payload); err != nil {
			log.Printf("ERROR: scheduler: enqueue %s for user %s: %v", kind, user.ID, err)
		}
	}
	if len(users) > 0 {
		log.Printf("scheduler: enqueued %s for %d users", kind, len(users))
	}
}
