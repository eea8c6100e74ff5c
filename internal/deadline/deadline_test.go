package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/stash/internal/inference"
	"github.com/scrypster/stash/pkg/types"
)

type stubClient struct {
	response string
	err      error
}

func (c *stubClient) Complete(ctx context.Context, req inference.Request) (string, error) {
	return c.response, c.err
}

func (c *stubClient) Model() string { return "stub" }

func TestUrgencyForThresholds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		deadline time.Time
		want     types.Urgency
	}{
		{"past due", now.Add(-time.Hour), types.UrgencyLow},
		{"exactly now", now, types.UrgencyLow},
		{"in one hour", now.Add(time.Hour), types.UrgencyCritical},
		{"just under a day", now.Add(23 * time.Hour), types.UrgencyCritical},
		{"exactly a day", now.Add(24 * time.Hour), types.UrgencyHigh},
		{"two days", now.Add(48 * time.Hour), types.UrgencyHigh},
		{"exactly three days", now.Add(72 * time.Hour), types.UrgencyMedium},
		{"five days", now.Add(120 * time.Hour), types.UrgencyMedium},
		{"exactly a week", now.Add(168 * time.Hour), types.UrgencyLow},
		{"a month", now.Add(30 * 24 * time.Hour), types.UrgencyLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UrgencyFor(now, tc.deadline))
		})
	}
}

func TestExtractDerivesUrgencyFromDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Model claims low urgency, but the date is 12 hours out. The derived
	// urgency must win.
	client := &stubClient{response: `{
		"has_deadline": true,
		"deadline": "2026-03-01T12:00:00Z",
		"description": "RSVP closes",
		"urgency": "low",
		"confidence": 0.9
	}`}
	e := NewWithClock(client, func() time.Time { return now })

	result := e.Extract(context.Background(), "RSVP by noon", "")
	require.True(t, result.HasDeadline)
	require.NotNil(t, result.Deadline)
	assert.Equal(t, types.UrgencyCritical, result.Urgency)
	assert.Equal(t, "RSVP closes", result.Description)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
}

func TestExtractHumanReadableDate(t *testing.T) {
	now := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	client := &stubClient{response: `{
		"has_deadline": true,
		"deadline": "January 25, 2026",
		"description": "applications due",
		"urgency": "critical",
		"confidence": 0.85
	}`}
	e := NewWithClock(client, func() time.Time { return now })

	result := e.Extract(context.Background(), "Applications due January 25, 2026", "")
	require.True(t, result.HasDeadline)
	require.NotNil(t, result.Deadline)
	assert.Equal(t, time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC), *result.Deadline)
	// Five days out: medium regardless of the model's label.
	assert.Equal(t, types.UrgencyMedium, result.Urgency)
}

func TestExtractInferenceFailureReturnsDefault(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	e := New(client)

	result := e.Extract(context.Background(), "pay rent by friday", "")
	assert.False(t, result.HasDeadline)
	assert.Nil(t, result.Deadline)
	assert.Equal(t, types.UrgencyLow, result.Urgency)
	assert.Zero(t, result.Confidence)
}

func TestExtractDiscardsUnparseableDeadline(t *testing.T) {
	client := &stubClient{response: `{
		"has_deadline": true,
		"deadline": "sometime next week",
		"urgency": "high",
		"confidence": 0.8
	}`}
	e := New(client)

	result := e.Extract(context.Background(), "due soon", "")
	assert.False(t, result.HasDeadline)
	assert.Equal(t, types.UrgencyLow, result.Urgency)
}

func TestExtractNoDeadlineResponse(t *testing.T) {
	client := &stubClient{response: `{"has_deadline": false}`}
	e := New(client)

	result := e.Extract(context.Background(), "a recipe for soup", "")
	assert.False(t, result.HasDeadline)
}

func TestExtractClampsConfidence(t *testing.T) {
	client := &stubClient{response: `{
		"has_deadline": true,
		"deadline": "2030-01-01",
		"confidence": 3.5
	}`}
	e := New(client)

	result := e.Extract(context.Background(), "deadline 2030", "")
	require.True(t, result.HasDeadline)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestParseDeadlineFormats(t *testing.T) {
	cases := map[string]bool{
		"2026-01-25T00:00:00Z":  true,
		"2026-01-25T15:04:05":   true,
		"2026-01-25":            true,
		"January 25, 2026":      true,
		"Jan 25, 2026":          true,
		"25th of January":       false,
		"":                      false,
	}
	for input, ok := range cases {
		_, got := parseDeadline(input)
		assert.Equal(t, ok, got, "input %q", input)
	}
}
