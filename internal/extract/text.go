package extract

import (
	"context"

	"github.com/scrypster/stash/internal/analyzer"
	"github.com/scrypster/stash/pkg/types"
)

// TextExtractor analyzes a capture's raw content directly. It serves text
// and webhook captures, and is the fallback for types without a specialized
// extractor.
type TextExtractor struct {
	analyzer *analyzer.Analyzer
}

// Extract runs the analyzer over the capture's content.
func (e *TextExtractor) Extract(ctx context.Context, capture *types.Capture) analyzer.Result {
	return e.analyzer.Analyze(ctx, truncate(capture.Content), capture.Context)
}
