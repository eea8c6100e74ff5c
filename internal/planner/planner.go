// Package planner derives a prioritized ActionPlan from a capture's analysis
// and deadline. When the inference capability fails, it synthesizes a
// deterministic heuristic plan instead of failing the pipeline.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/stash/internal/inference"
	"github.com/scrypster/stash/pkg/types"
)

// FallbackConfidence is the fixed confidence of a heuristic plan. It is
// deliberately lower than a typical model-derived plan so downstream
// consumers can tell the plan was not model-reasoned.
const FallbackConfidence = 0.6

const systemPrompt = `You plan follow-up actions for freshly saved content.
Available action types: ADD_TO_COLLECTION, CREATE_REMINDER, ADD_TAG,
CREATE_CALENDAR_EVENT, NOTIFY, SUMMARIZE, EXTRACT_ENTITIES.
Respond with a single JSON object and nothing else:
{
  "actions": [
    {"type": "ADD_TAG", "data": {"tags": ["go"]}, "priority": 5, "reasoning": "why"}
  ],
  "reasoning": "overall reasoning",
  "confidence": 0.85
}
Priorities range 1-10 (10 = apply first).`

// planResponse mirrors the fixed result schema for planning.
type planResponse struct {
	Actions    []types.Action `json:"actions"`
	Reasoning  string         `json:"reasoning"`
	Confidence float64        `json:"confidence"`
}

// Planner builds action plans.
type Planner struct {
	client inference.Client
	now    func() time.Time
}

// New creates a Planner.
func New(client inference.Client) *Planner {
	return &Planner{client: client, now: time.Now}
}

// NewWithClock creates a Planner with an injected clock, for tests.
func NewWithClock(client inference.Client, now func() time.Time) *Planner {
	return &Planner{client: client, now: now}
}

// CreatePlan asks the inference capability for a prioritized action list.
// Confidence and per-action priorities are clamped into their declared ranges
// regardless of what the model returns; actions with unrecognized types are
// skipped. If the call fails for any reason the heuristic fallback plan is
// returned — the planner never fails the pipeline.
func (p *Planner) CreatePlan(ctx context.Context, analysis *types.DeepAnalysis, deadline types.ExtractedDeadline, captureID, userID string) *types.ActionPlan {
	raw, err := p.client.Complete(ctx, inference.Request{
		System:      systemPrompt,
		Prompt:      buildBrief(analysis, deadline),
		Temperature: 0.4,
	})
	if err != nil {
		log.Printf("WARNING: planner inference call failed, using heuristic plan: %v", err)
		return p.fallbackPlan(analysis, deadline, captureID, userID)
	}

	var resp planResponse
	if err := json.Unmarshal([]byte(inference.ExtractJSON(raw)), &resp); err != nil {
		log.Printf("WARNING: planner response did not match schema, using heuristic plan: %v", err)
		return p.fallbackPlan(analysis, deadline, captureID, userID)
	}

	plan := &types.ActionPlan{
		CaptureID:  captureID,
		UserID:     userID,
		Reasoning:  resp.Reasoning,
		Confidence: resp.Confidence,
	}
	for _, action := range resp.Actions {
		if !types.IsValidActionType(action.Type) {
			log.Printf("planner: skipping action with unknown type %q", action.Type)
			continue
		}
		plan.Actions = append(plan.Actions, action)
	}
	plan.Clamp()
	return plan
}

// fallbackPlan synthesizes a deterministic plan from what the analysis and
// deadline modules already produced, without any further inference calls.
func (p *Planner) fallbackPlan(analysis *types.DeepAnalysis, deadline types.ExtractedDeadline, captureID, userID string) *types.ActionPlan {
	plan := &types.ActionPlan{
		CaptureID:  captureID,
		UserID:     userID,
		Reasoning:  "heuristic plan: inference unavailable",
		Confidence: FallbackConfidence,
	}

	if len(analysis.Topics) > 0 {
		tags := analysis.Topics
		if len(tags) > 3 {
			tags = tags[:3]
		}
		plan.Actions = append(plan.Actions, types.Action{
			Type:      types.ActionAddTag,
			Data:      map[string]interface{}{"tags": tags},
			Priority:  5,
			Reasoning: "tag with detected topics",
		})
	}

	if category := intentCategory(analysis); category != "" {
		plan.Actions = append(plan.Actions, types.Action{
			Type:      types.ActionAddToCollection,
			Data:      map[string]interface{}{"collection": category},
			Priority:  7,
			Reasoning: "file under detected content category",
		})
	}

	if deadline.Urgency == types.UrgencyHigh || deadline.Urgency == types.UrgencyCritical {
		plan.Actions = append(plan.Actions, types.Action{
			Type: types.ActionCreateReminder,
			Data: map[string]interface{}{
				"message":      "Time-sensitive capture needs attention",
				"scheduled_at": p.now().Add(time.Hour).UTC().Format(time.RFC3339),
			},
			Priority:  9,
			Reasoning: "deadline module signaled urgency",
		})
	}

	// The confirmation notification is always present and always last-added.
	plan.Actions = append(plan.Actions, types.Action{
		Type: types.ActionNotify,
		Data: map[string]interface{}{
			"title": "Capture saved",
			"body":  fmt.Sprintf("Saved %q", analysis.Title),
		},
		Priority:  3,
		Reasoning: "confirm the save to the user",
	})

	return plan
}

// intentCategory maps the analyzed content type to a collection category.
// "unknown" carries no intent and yields no collection action.
func intentCategory(analysis *types.DeepAnalysis) string {
	if analysis.ContentType == "" || analysis.ContentType == "unknown" {
		return ""
	}
	return analysis.ContentType
}

// buildBrief assembles the textual brief handed to the model.
func buildBrief(analysis *types.DeepAnalysis, deadline types.ExtractedDeadline) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", analysis.Title)
	fmt.Fprintf(&sb, "Description: %s\n", analysis.Description)
	fmt.Fprintf(&sb, "Content type: %s\n", analysis.ContentType)
	if len(analysis.Topics) > 0 {
		fmt.Fprintf(&sb, "Topics: %s\n", strings.Join(analysis.Topics, ", "))
	}
	if len(analysis.ActionItems) > 0 {
		fmt.Fprintf(&sb, "Action items: %s\n", strings.Join(analysis.ActionItems, "; "))
	}
	if deadline.HasDeadline && deadline.Deadline != nil {
		fmt.Fprintf(&sb, "Deadline: %s (%s urgency): %s\n",
			deadline.Deadline.Format(time.RFC3339), deadline.Urgency, deadline.Description)
	}
	sb.WriteString("\nPropose follow-up actions for this capture.")
	return sb.String()
}
