package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "MEETSCRIBE/"
	// Work queue name, one message per uploaded recording
	Work = st + "Work"
	// StatusChange queue name
	StatusChange = st + "StatusChange"
	// Inform queue name
	Inform = st + "Inform"
)

// ProcessMessage asks the worker to run the pipeline for a recording
type ProcessMessage struct {
	amessages.QueueMessage
	MediaURL    string `json:"mediaURL,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// RecordingMessage informs about recording status change
type RecordingMessage struct {
	amessages.QueueMessage
	Status string `json:"status,omitempty"`
}

// NewRecordingMessage creates status change message
func NewRecordingMessage(id, status string) *RecordingMessage {
	return &RecordingMessage{QueueMessage: amessages.QueueMessage{ID: id}, Status: status}
}
