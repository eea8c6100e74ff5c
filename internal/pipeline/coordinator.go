// Package pipeline coordinates the asynchronous processing of captures:
// extraction, analysis, deadline detection, planning, and action execution.
// Inference failures degrade; only storage failures fail a processing run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/stash/internal/deadline"
	"github.com/scrypster/stash/internal/extract"
	"github.com/scrypster/stash/internal/planner"
	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// Coordinator runs the full processing flow for one capture.
type Coordinator struct {
	store     storage.Store
	registry  *extract.Registry
	deadlines *deadline.Extractor
	planner   *planner.Planner
	executor  *Executor
}

// NewCoordinator wires the processing stages together.
func NewCoordinator(store storage.Store, registry *extract.Registry, deadlines *deadline.Extractor, p *planner.Planner, executor *Executor) *Coordinator {
	return &Coordinator{
		store:     store,
		registry:  registry,
		deadlines: deadlines,
		planner:   p,
		executor:  executor,
	}
}

// ProcessCapture handles one capture-processing job. The flow is
// extraction, then deadline detection on the extracted text, then planning,
// then action execution. Re-delivery of the same job is safe: the status
// guard skips captures that already finished, and every side effect the
// executor applies is idempotent.
func (c *Coordinator) ProcessCapture(ctx context.Context, payload types.CaptureProcessingPayload) error {
	capture, err := c.store.GetCapture(ctx, payload.CaptureID)
	if err != nil {
		return fmt.Errorf("load capture %s: %w", payload.CaptureID, err)
	}

	if err := c.store.UpdateCaptureStatus(ctx, capture.ID, types.StatusProcessing); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			switch capture.Status {
			case types.StatusCompleted, types.StatusFailed:
				log.Printf("pipeline: capture %s already %s, skipping", capture.ID, capture.Status)
				return nil
			case types.StatusProcessing:
				// A previous run crashed mid-job; redo the work. The
				// idempotent side effects make the redo safe.
			default:
				return fmt.Errorf("mark capture %s processing: %w", capture.ID, err)
			}
		} else {
			return fmt.Errorf("mark capture %s processing: %w", capture.ID, err)
		}
	}

	result := c.registry.ForType(capture.Type).Extract(ctx, capture)
	if result.Degraded {
		log.Printf("WARNING: pipeline: capture %s degraded: %s", capture.ID, result.Reason)
	}

	dl := c.deadlines.Extract(ctx, result.Analysis.FullText, capture.Context)
	plan := c.planner.CreatePlan(ctx, result.Analysis, dl, capture.ID, capture.UserID)

	if err := c.executor.Apply(ctx, capture, result, dl, plan); err != nil {
		return fmt.Errorf("apply plan for capture %s: %w", capture.ID, err)
	}

	if err := c.store.UpdateCaptureStatus(ctx, capture.ID, types.StatusCompleted); err != nil {
		return fmt.Errorf("mark capture %s completed: %w", capture.ID, err)
	}
	log.Printf("pipeline: capture %s completed (%d actions, degraded=%t)", capture.ID, len(plan.Actions), result.Degraded)
	return nil
}

// MarkFailed moves a capture to the terminal failed status. Called when its
// processing job dead-letters after exhausting retries.
func (c *Coordinator) MarkFailed(ctx context.Context, captureID string) {
	if err := c.store.UpdateCaptureStatus(ctx, captureID, types.StatusFailed); err != nil {
		log.Printf("ERROR: pipeline: mark capture %s failed: %v", captureID, err)
	}
}
