package api

import "github.com/airenas/meetscribe/internal/pkg/align"

// Media is the audio or video to process
type Media struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result of the speech to text call. If Error is set, Text must be ignored
type Result struct {
	Text     string
	Words    []align.Word
	Duration *float64
	Error    string
}
