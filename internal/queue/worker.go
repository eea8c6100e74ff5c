package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// Handlers binds each job kind to its typed handler. A nil handler means the
// pool does not claim jobs of that kind.
type Handlers struct {
	ProcessCapture    func(ctx context.Context, payload types.CaptureProcessingPayload) error
	SendReminder      func(ctx context.Context, payload types.ReminderSendingPayload) error
	RunProactiveAgent func(ctx context.Context, payload types.ProactiveAgentPayload) error
	LearnPatterns     func(ctx context.Context, payload types.PatternLearningPayload) error

	// OnDead, when set, is invoked after a job is dead-lettered so callers
	// can mark the affected entity terminally failed.
	OnDead func(ctx context.Context, job *types.Job)
}

func (h Handlers) kinds() []types.JobKind {
	var kinds []types.JobKind
	if h.ProcessCapture != nil {
		kinds = append(kinds, types.JobCaptureProcessing)
	}
	if h.SendReminder != nil {
		kinds = append(kinds, types.JobReminderSending)
	}
	if h.RunProactiveAgent != nil {
		kinds = append(kinds, types.JobProactiveAgent)
	}
	if h.LearnPatterns != nil {
		kinds = append(kinds, types.JobPatternLearning)
	}
	return kinds
}

// Stale-job recovery. A crashed process leaves its claimed jobs in the
// running state; the reaper returns them to pending once they age past
// staleJobAfter, which sits far above any handler's runtime. Idempotent
// side-effect writes make the redelivery safe.
const (
	staleJobAfter = 5 * time.Minute
	reapInterval  = time.Minute
)

// WorkerPool polls the job store and dispatches claimed jobs to handlers.
// It also runs the stale-job reaper, so work stranded by a dead process is
// picked back up without operator intervention.
type WorkerPool struct {
	store        storage.JobStore
	handlers     Handlers
	kinds        []types.JobKind
	numWorkers   int
	pollInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a worker pool. Start must be called to begin polling.
func NewWorkerPool(store storage.JobStore, handlers Handlers, numWorkers int, pollInterval time.Duration) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &WorkerPool{
		store:        store,
		handlers:     handlers,
		kinds:        handlers.kinds(),
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
	}
}

// Start launches the worker goroutines and the stale-job reaper.
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.wg.Add(1)
	go p.reap(ctx)
	log.Printf("queue: started %d workers (kinds: %v)", p.numWorkers, p.kinds)
}

// Stop signals the workers and waits up to timeout for in-flight jobs to
// finish. Jobs still running after the timeout stay in the running state.
func (p *WorkerPool) Stop(timeout time.Duration) {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("queue: workers drained")
	case <-time.After(timeout):
		log.Printf("WARNING: queue: shutdown timeout after %s, abandoning in-flight jobs", timeout)
	}
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.ClaimNextJob(ctx, p.kinds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ERROR: queue: worker %d claim failed: %v", id, err)
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}
		p.process(ctx, job)
	}
}

// reap periodically requeues jobs stranded in the running state, starting
// with a sweep at startup.
func (p *WorkerPool) reap(ctx context.Context) {
	defer p.wg.Done()
	p.requeueStale(ctx)

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.requeueStale(ctx)
		}
	}
}

func (p *WorkerPool) requeueStale(ctx context.Context) {
	n, err := p.store.RequeueStaleJobs(ctx, staleJobAfter)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("ERROR: queue: requeue stale jobs: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("WARNING: queue: requeued %d stale jobs", n)
	}
}

func (p *WorkerPool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}

// process runs a claimed job to completion, retry, or the dead-letter state.
// Completion bookkeeping uses a background context so a shutdown mid-job
// does not strand a finished job in the running state.
func (p *WorkerPool) process(ctx context.Context, job *types.Job) {
	err := p.dispatch(ctx, job)

	bookCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err == nil {
		if err := p.store.CompleteJob(bookCtx, job.ID); err != nil {
			log.Printf("ERROR: queue: complete job %s: %v", job.ID, err)
		}
		return
	}

	attempt := job.Attempts + 1
	if attempt >= job.MaxAttempts {
		log.Printf("ERROR: queue: job %s (%s) dead after %d attempts: %v", job.ID, job.Kind, attempt, err)
		if dlErr := p.store.DeadLetterJob(bookCtx, job.ID, err.Error()); dlErr != nil {
			log.Printf("ERROR: queue: dead-letter job %s: %v", job.ID, dlErr)
		}
		if p.handlers.OnDead != nil {
			p.handlers.OnDead(bookCtx, job)
		}
		return
	}

	backoff := PolicyFor(job.Kind).BackoffFor(attempt)
	log.Printf("WARNING: queue: job %s (%s) attempt %d/%d failed, retrying in %s: %v",
		job.ID, job.Kind, attempt, job.MaxAttempts, backoff, err)
	if rErr := p.store.RetryJob(bookCtx, job.ID, err.Error(), time.Now().UTC().Add(backoff)); rErr != nil {
		log.Printf("ERROR: queue: retry job %s: %v", job.ID, rErr)
	}
}

// dispatch decodes the payload and routes by kind. The switch is closed:
// adding a job kind without a handler arm is a bug surfaced at dispatch.
func (p *WorkerPool) dispatch(ctx context.Context, job *types.Job) error {
	switch job.Kind {
	case types.JobCaptureProcessing:
		var payload types.CaptureProcessingPayload
		if err := types.UnmarshalPayload(job.PayloadJSON, &payload); err != nil {
			return err
		}
		return p.handlers.ProcessCapture(ctx, payload)
	case types.JobReminderSending:
		var payload types.ReminderSendingPayload
		if err := types.UnmarshalPayload(job.PayloadJSON, &payload); err != nil {
			return err
		}
		return p.handlers.SendReminder(ctx, payload)
	case types.JobProactiveAgent:
		var payload types.ProactiveAgentPayload
		if err := types.UnmarshalPayload(job.PayloadJSON, &payload); err != nil {
			return err
		}
		return p.handlers.RunProactiveAgent(ctx, payload)
	case types.JobPatternLearning:
		var payload types.PatternLearningPayload
		if err := types.UnmarshalPayload(job.PayloadJSON, &payload); err != nil {
			return err
		}
		return p.handlers.LearnPatterns(ctx, payload)
	default:
		return &UnknownKindError{Kind: job.Kind}
	}
}

// UnknownKindError marks a job whose kind has no handler arm. These jobs
// exhaust their attempts and dead-letter through the normal accounting.
type UnknownKindError struct {
	Kind types.JobKind
}

func (e *UnknownKindError) Error() string {
	return "unknown job kind: " + string(e.Kind)
}
