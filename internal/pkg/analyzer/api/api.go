package api

import "github.com/airenas/meetscribe/internal/pkg/persistence"

// Input for the meeting analysis
type Input struct {
	Transcript        string
	SpeakerTranscript string
}

// Result of the meeting analysis. If Error is set, other fields must be ignored
type Result struct {
	Summary          string                   `json:"summary"`
	ActionItems      []persistence.ActionItem `json:"action_items"`
	Decisions        []persistence.Decision   `json:"decisions"`
	VisualSummaryURL string                   `json:"visual_summary_url,omitempty"`
	Error            string                   `json:"error,omitempty"`
}
