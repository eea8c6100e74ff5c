package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]CaptureStatus{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	forbidden := [][2]CaptureStatus{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusPending},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusPending},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusCompleted},
	}
	for _, pair := range forbidden {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestActionClampPriority(t *testing.T) {
	a := Action{Priority: 99}
	a.ClampPriority()
	assert.Equal(t, 10, a.Priority)

	a = Action{Priority: -3}
	a.ClampPriority()
	assert.Equal(t, 1, a.Priority)
}

func TestPlanClamp(t *testing.T) {
	plan := ActionPlan{
		Confidence: 2.4,
		Actions:    []Action{{Priority: 0}, {Priority: 11}},
	}
	plan.Clamp()
	assert.Equal(t, 1.0, plan.Confidence)
	assert.Equal(t, 1, plan.Actions[0].Priority)
	assert.Equal(t, 10, plan.Actions[1].Priority)
}

func TestDegradedAnalysisNonNilSlices(t *testing.T) {
	a := DegradedAnalysis("Untitled Capture", "text")
	assert.NotNil(t, a.Topics)
	assert.NotNil(t, a.KeyTakeaways)
	assert.NotNil(t, a.ActionItems)
	assert.NotNil(t, a.DetectedDates)
	assert.NotNil(t, a.Entities.People)
	assert.Equal(t, "unknown", a.ContentType)
}

func TestPayloadRoundTrip(t *testing.T) {
	raw, err := MarshalPayload(CaptureProcessingPayload{CaptureID: "cap-1", UserID: "user-1"})
	assert.NoError(t, err)

	var payload CaptureProcessingPayload
	assert.NoError(t, UnmarshalPayload(raw, &payload))
	assert.Equal(t, "cap-1", payload.CaptureID)
}
