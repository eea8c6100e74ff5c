// Command stash runs the capture pipeline: the ingestion gateway, the
// durable job queue, and its worker pool, in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/internal/config"
	"github.com/scrypster/stash/internal/deadline"
	"github.com/scrypster/stash/internal/extract"
	"github.com/scrypster/stash/internal/gateway"
	"github.com/scrypster/stash/internal/inference"
	"github.com/scrypster/stash/internal/match"
	"github.com/scrypster/stash/internal/notify"
	"github.com/scrypster/stash/internal/pipeline"
	"github.com/scrypster/stash/internal/planner"
	"github.com/scrypster/stash/internal/queue"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/internal/storage/postgres"
	"github.com/scrypster/stash/internal/storage/sqlite"
	"github.com/scrypster/stash/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := inference.NewLimiterFromConfig(cfg.Inference)
	client, err := inference.NewClientFromConfig(cfg.Inference, limiter)
	if err != nil {
		return err
	}

	var matcher *match.Matcher
	if cfg.Inference.APIKey != "" {
		embedder := inference.NewEmbeddingClient(inference.EmbeddingConfig{
			APIKey: cfg.Inference.APIKey,
			Model:  cfg.Inference.EmbeddingModel,
		}, limiter)
		matcher, err = match.NewMatcher(embedder, 0)
		if err != nil {
			return err
		}
	}

	var hub *notify.PushHub
	var transport notify.Transport
	if cfg.Notify.Transport == "push" {
		hub = notify.NewPushHub()
		transport = hub
	}
	dispatcher := notify.NewDispatcher(store, transport)

	q := queue.New(store)
	a := analyzer.New(client)
	registry := extract.NewRegistry(a, nil)
	deadlines := deadline.New(client)
	plans := planner.New(client)
	executor := pipeline.NewExecutor(store, q, matcher, dispatcher)
	coordinator := pipeline.NewCoordinator(store, registry, deadlines, plans, executor)
	reminders := pipeline.NewReminderSender(store, dispatcher)
	agent := pipeline.NewAgent(store, matcher, dispatcher)

	pool := queue.NewWorkerPool(store, queue.Handlers{
		ProcessCapture:    coordinator.ProcessCapture,
		SendReminder:      reminders.SendReminder,
		RunProactiveAgent: agent.RunProactiveAgent,
		LearnPatterns:     agent.LearnPatterns,
		OnDead: func(ctx context.Context, job *types.Job) {
			if job.Kind != types.JobCaptureProcessing {
				return
			}
			var payload types.CaptureProcessingPayload
			if err := types.UnmarshalPayload(job.PayloadJSON, &payload); err != nil {
				log.Printf("ERROR: decode dead job %s payload: %v", job.ID, err)
				return
			}
			coordinator.MarkFailed(ctx, payload.CaptureID)
		},
	}, cfg.Queue.NumWorkers, cfg.Queue.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)

	scheduler := queue.NewScheduler(store, q)
	scheduler.Start(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := gateway.New(addr, store, q, hub, dispatcher)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: gateway shutdown: %v", err)
	}
	scheduler.Stop()
	pool.Stop(cfg.Queue.ShutdownTimeout)
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return sqlite.New(cfg.Storage.DataPath)
	default:
		return nil, errors.New("unknown storage engine: " + cfg.Storage.Engine)
	}
}
