// Package analyzer turns extracted text into a structured DeepAnalysis via
// the inference capability. Failures never propagate: the result carries an
// explicit Degraded flag and the documented safe stub instead.
package analyzer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/scrypster/stash/internal/inference"
	"github.com/scrypster/stash/pkg/types"
)

// Result is the outcome of an analysis call. When Degraded is true, Analysis
// is the safe stub and Reason explains what went wrong. Analysis is never nil.
type Result struct {
	Analysis *types.DeepAnalysis
	Degraded bool
	Reason   string
}

// Analyzer extracts structured meaning from capture text.
type Analyzer struct {
	client inference.Client
}

// New creates an Analyzer backed by the given inference client.
func New(client inference.Client) *Analyzer {
	return &Analyzer{client: client}
}

// analysisResponse mirrors the fixed result schema the model is constrained to.
type analysisResponse struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	ContentType      string          `json:"content_type"`
	Topics           []string        `json:"topics"`
	Entities         types.EntityMap `json:"entities"`
	KeyTakeaways     []string        `json:"key_takeaways"`
	ActionItems      []string        `json:"action_items"`
	DetectedDates    []string        `json:"detected_dates"`
	Difficulty       string          `json:"difficulty"`
	EstimatedMinutes int             `json:"estimated_minutes"`
}

// Analyze asks the inference capability for a structured understanding of the
// text. On timeout, malformed output, or transport error it returns the
// degraded stub with Degraded set, never an error.
func (a *Analyzer) Analyze(ctx context.Context, text, userContext string) Result {
	if text == "" {
		return degraded(text, "empty input text")
	}

	raw, err := a.client.Complete(ctx, inference.Request{
		System:      analysisSystemPrompt,
		Prompt:      buildAnalysisPrompt(text, userContext),
		Temperature: 0.4,
	})
	if err != nil {
		log.Printf("WARNING: analyzer inference call failed: %v", err)
		return degraded(text, "inference call failed: "+err.Error())
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(inference.ExtractJSON(raw)), &resp); err != nil {
		log.Printf("WARNING: analyzer response did not match schema: %v", err)
		return degraded(text, "malformed inference response")
	}

	analysis := normalize(&resp, text)
	return Result{Analysis: analysis}
}

// normalize fills defaults so no field is ever missing downstream.
func normalize(resp *analysisResponse, fullText string) *types.DeepAnalysis {
	analysis := &types.DeepAnalysis{
		Title:            resp.Title,
		Description:      resp.Description,
		FullText:         fullText,
		ContentType:      resp.ContentType,
		Topics:           resp.Topics,
		Entities:         resp.Entities,
		KeyTakeaways:     resp.KeyTakeaways,
		ActionItems:      resp.ActionItems,
		DetectedDates:    resp.DetectedDates,
		Difficulty:       resp.Difficulty,
		EstimatedMinutes: resp.EstimatedMinutes,
	}

	if analysis.Title == "" {
		analysis.Title = "Untitled Capture"
	}
	if analysis.ContentType == "" {
		analysis.ContentType = "unknown"
	}
	switch analysis.Difficulty {
	case types.DifficultyBeginner, types.DifficultyIntermediate, types.DifficultyAdvanced:
	default:
		analysis.Difficulty = types.DifficultyIntermediate
	}
	if analysis.EstimatedMinutes < 0 {
		analysis.EstimatedMinutes = 0
	}
	if analysis.Topics == nil {
		analysis.Topics = []string{}
	}
	if analysis.KeyTakeaways == nil {
		analysis.KeyTakeaways = []string{}
	}
	if analysis.ActionItems == nil {
		analysis.ActionItems = []string{}
	}
	if analysis.DetectedDates == nil {
		analysis.DetectedDates = []string{}
	}
	if analysis.Entities.People == nil {
		analysis.Entities.People = []string{}
	}
	if analysis.Entities.Organizations == nil {
		analysis.Entities.Organizations = []string{}
	}
	if analysis.Entities.Technologies == nil {
		analysis.Entities.Technologies = []string{}
	}
	if analysis.Entities.Locations == nil {
		analysis.Entities.Locations = []string{}
	}
	return analysis
}

func degraded(fullText, reason string) Result {
	return Result{
		Analysis: types.DegradedAnalysis("Untitled Capture", fullText),
		Degraded: true,
		Reason:   reason,
	}
}
