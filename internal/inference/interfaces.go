// Package inference wraps the external structured-inference capability:
// ask a model for a structured answer to a prompt. The wire format is an
// implementation detail of each backend; callers only see Complete.
package inference

import "context"

// Request is a single structured-inference call.
type Request struct {
	// System is the system instruction describing the task.
	System string

	// Prompt is the user content to reason over.
	Prompt string

	// Temperature controls output variety. Deadline extraction uses a low
	// value to favor consistency.
	Temperature float64
}

// Client is the interface for structured-inference backends.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Embedder generates vector embeddings for text. Used by the collection
// matcher, not by the core pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}
