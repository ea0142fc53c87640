package persistence

import (
	"database/sql"
	"time"
)

type (

	//Recording table
	Recording struct {
		ID                     string
		OriginalFilename       string
		MediaURL               string
		StoragePath            string
		FileSize               sql.NullInt64
		ContentType            sql.NullString
		Email                  sql.NullString
		Transcript             sql.NullString
		TranscriptWithSpeakers sql.NullString
		Duration               sql.NullFloat64
		Summary                sql.NullString
		ActionItems            []ActionItem
		Decisions              []Decision
		VisualSummaryURL       sql.NullString
		Status                 string
		Error                  sql.NullString
		Created                time.Time
		Updated                time.Time
	}

	// ActionItem is a task extracted from the meeting
	ActionItem struct {
		Description string `json:"description"`
		Assignee    string `json:"assignee,omitempty"`
		DueDate     string `json:"due_date,omitempty"`
		Priority    string `json:"priority,omitempty"`
	}

	// Decision is a decision made in the meeting
	Decision struct {
		Description string `json:"description"`
		Owner       string `json:"owner,omitempty"`
		Context     string `json:"context,omitempty"`
		Impact      string `json:"impact,omitempty"`
	}

	// TranscriptionUpdate holds transcription field group.
	// Null values keep the stored ones.
	TranscriptionUpdate struct {
		ID                     string
		Status                 string
		Transcript             sql.NullString
		TranscriptWithSpeakers sql.NullString
		Duration               sql.NullFloat64
		Error                  sql.NullString
		Updated                time.Time
	}

	// AnalysisUpdate holds analysis field group
	AnalysisUpdate struct {
		ID               string
		Status           string
		Summary          sql.NullString
		ActionItems      []ActionItem
		Decisions        []Decision
		VisualSummaryURL sql.NullString
		Error            sql.NullString
		Updated          time.Time
	}
)
