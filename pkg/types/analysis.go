package types

import "time"

// Difficulty tiers for analyzed content.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// EntityMap groups named entities detected in a capture's content.
type EntityMap struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Technologies  []string `json:"technologies"`
	Locations     []string `json:"locations"`
}

// DeepAnalysis is the structured understanding of a capture's content.
// It is produced fresh per processing run and never persisted as its own
// entity; only the actions it induces are.
type DeepAnalysis struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	FullText         string    `json:"full_text"`
	ContentType      string    `json:"content_type"`
	Topics           []string  `json:"topics"`
	Entities         EntityMap `json:"entities"`
	KeyTakeaways     []string  `json:"key_takeaways"`
	ActionItems      []string  `json:"action_items"`
	DetectedDates    []string  `json:"detected_dates"`
	Difficulty       string    `json:"difficulty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
}

// DegradedAnalysis returns the safe stub substituted when extraction or
// inference fails. All slices are non-nil so downstream consumers never see
// missing fields.
func DegradedAnalysis(title, fullText string) *DeepAnalysis {
	return &DeepAnalysis{
		Title:            title,
		Description:      "Content saved for later processing",
		FullText:         fullText,
		ContentType:      "unknown",
		Topics:           []string{},
		Entities:         EntityMap{People: []string{}, Organizations: []string{}, Technologies: []string{}, Locations: []string{}},
		KeyTakeaways:     []string{},
		ActionItems:      []string{},
		DetectedDates:    []string{},
		Difficulty:       DifficultyIntermediate,
		EstimatedMinutes: 0,
	}
}

// Urgency is a four-level classification of time pressure.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ExtractedDeadline is the deadline module's output for a capture.
// Deadline, when present, is always UTC. Urgency is a deterministic function
// of time-to-deadline once a concrete date exists, not a model judgment.
type ExtractedDeadline struct {
	HasDeadline bool
	Deadline    *time.Time
	Description string
	Urgency     Urgency
	Confidence  float64 // clamped to [0,1]
}

// NoDeadline is the safe, inert default returned when the inference call
// fails or produces nothing usable.
func NoDeadline() ExtractedDeadline {
	return ExtractedDeadline{
		HasDeadline: false,
		Urgency:     UrgencyLow,
		Confidence:  0,
	}
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
