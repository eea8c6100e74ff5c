// Package deadline extracts deadlines from capture content and derives
// urgency deterministically from time-to-deadline. Inference failures
// collapse to the inert default: no deadline, low urgency, zero confidence.
package deadline

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/scrypster/stash/internal/inference"
	"github.com/scrypster/stash/pkg/types"
)

const systemPrompt = `You detect deadlines in saved content.
Look for deadline-indicative language: application due dates, payment dues,
RSVP cutoffs, registration closes, expiration dates, submission windows.
Respond with a single JSON object and nothing else:
{
  "has_deadline": true,
  "deadline": "2026-01-25T00:00:00Z",
  "description": "what the deadline is for",
  "urgency": "low|medium|high|critical",
  "confidence": 0.9
}
Use ISO-8601 UTC for the deadline. If there is no deadline, set has_deadline
to false and omit the other fields.`

// deadlineResponse mirrors the fixed result schema for deadline extraction.
type deadlineResponse struct {
	HasDeadline bool    `json:"has_deadline"`
	Deadline    string  `json:"deadline"`
	Description string  `json:"description"`
	Urgency     string  `json:"urgency"`
	Confidence  float64 `json:"confidence"`
}

// Extractor extracts deadlines from content.
type Extractor struct {
	client inference.Client
	now    func() time.Time
}

// New creates a deadline Extractor.
func New(client inference.Client) *Extractor {
	return &Extractor{client: client, now: time.Now}
}

// NewWithClock creates an Extractor with an injected clock, for tests.
func NewWithClock(client inference.Client, now func() time.Time) *Extractor {
	return &Extractor{client: client, now: now}
}

// Extract asks the inference capability for a deadline. Temperature is kept
// low to favor consistency over variety. On any failure it returns the safe
// default rather than an error.
func (e *Extractor) Extract(ctx context.Context, content, userContext string) types.ExtractedDeadline {
	prompt := content
	if userContext != "" {
		prompt = "Context: " + userContext + "\n\n" + content
	}

	raw, err := e.client.Complete(ctx, inference.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("WARNING: deadline inference call failed: %v", err)
		return types.NoDeadline()
	}

	var resp deadlineResponse
	if err := json.Unmarshal([]byte(inference.ExtractJSON(raw)), &resp); err != nil {
		log.Printf("WARNING: deadline response did not match schema: %v", err)
		return types.NoDeadline()
	}

	if !resp.HasDeadline {
		return types.NoDeadline()
	}

	parsed, ok := parseDeadline(resp.Deadline)
	if !ok {
		// A date string that does not parse to a valid calendar point is
		// discarded, never propagated as a malformed timestamp.
		log.Printf("WARNING: discarding unparseable deadline %q", resp.Deadline)
		return types.NoDeadline()
	}

	result := types.ExtractedDeadline{
		HasDeadline: true,
		Deadline:    &parsed,
		Description: resp.Description,
		Confidence:  types.Clamp01(resp.Confidence),
	}

	// With a concrete date, urgency is a pure function of time-to-deadline.
	// The model's label only matters when no date could be resolved.
	result.Urgency = UrgencyFor(e.now(), parsed)
	return result
}

// deadlineFormats are the timestamp layouts accepted from the model, tried in
// order. All results are normalized to UTC.
var deadlineFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDeadline(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// UrgencyFor derives the urgency tier from the hours remaining until the
// deadline. Past-due or instant deadlines rank low: the moment for urgency
// has passed.
func UrgencyFor(now, deadline time.Time) types.Urgency {
	hours := deadline.Sub(now).Hours()
	switch {
	case hours <= 0:
		return types.UrgencyLow
	case hours < 24:
		return types.UrgencyCritical
	case hours < 72:
		return types.UrgencyHigh
	case hours < 168:
		return types.UrgencyMedium
	default:
		return types.UrgencyLow
	}
}
