// Package types defines the shared domain types for the Stash capture
// processing pipeline: captures, analyses, action plans, jobs, and
// notifications.
package types

import "time"

// CaptureType classifies the raw content of a capture.
type CaptureType string

// Capture content types.
const (
	CaptureLink     CaptureType = "link"
	CaptureText     CaptureType = "text"
	CaptureImage    CaptureType = "image"
	CaptureVideo    CaptureType = "video"
	CaptureAudio    CaptureType = "audio"
	CapturePDF      CaptureType = "pdf"
	CaptureDocument CaptureType = "document"
	CaptureOther    CaptureType = "other"
)

// ValidCaptureTypes contains all recognized capture types.
var ValidCaptureTypes = []CaptureType{
	CaptureLink,
	CaptureText,
	CaptureImage,
	CaptureVideo,
	CaptureAudio,
	CapturePDF,
	CaptureDocument,
	CaptureOther,
}

// IsValidCaptureType checks whether t is a recognized capture type.
func IsValidCaptureType(t CaptureType) bool {
	for _, v := range ValidCaptureTypes {
		if t == v {
			return true
		}
	}
	return false
}

// CaptureStatus represents the processing lifecycle of a capture.
type CaptureStatus string

const (
	// StatusPending indicates the capture is newly ingested, awaiting processing.
	StatusPending CaptureStatus = "pending"

	// StatusProcessing indicates a worker is currently processing the capture.
	StatusProcessing CaptureStatus = "processing"

	// StatusCompleted indicates processing finished and all actions were applied.
	StatusCompleted CaptureStatus = "completed"

	// StatusFailed indicates processing failed after exhausting retries.
	StatusFailed CaptureStatus = "failed"
)

// CanTransition reports whether a capture may move from one status to another.
// The lifecycle only moves forward: pending → processing → completed|failed.
// A capture never regresses to an earlier status.
func CanTransition(from, to CaptureStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Capture is a unit of ingested user content with a processing lifecycle.
// Created by the ingestion gateway, mutated only by the pipeline coordinator,
// never deleted by the pipeline itself.
type Capture struct {
	ID        string
	UserID    string
	Type      CaptureType
	Content   string
	Context   string // optional user-supplied context
	Metadata  map[string]interface{}
	Status    CaptureStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
