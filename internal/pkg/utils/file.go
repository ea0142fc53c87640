package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// TranscriptFile is the plain transcript result file name
	TranscriptFile = "transcript.txt"
	// SpeakersFile is the speaker labeled transcript result file name
	SpeakersFile = "transcript_speakers.txt"
)

var audioExt = map[string]bool{".wav": true, ".mp3": true, ".mp4": true, ".m4a": true, ".flac": true, ".aac": true,
	".ogg": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true, ".wmv": true, ".mpeg": true, ".mpg": true}

var transcribeTypes = map[string]bool{"audio/mpeg": true, "audio/mp3": true, "audio/wav": true, "audio/m4a": true,
	"audio/flac": true, "audio/aac": true, "video/mp4": true, "video/mov": true, "video/avi": true, "video/webm": true,
	"video/mkv": true, "video/wmv": true, "video/mpeg": true, "video/mpg": true}

// MakeValidateFileName drops the directory part of fileName, lowercases the extension,
// replaces spaces and prefixes the name with the id directory
func MakeValidateFileName(id, fileName string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.TrimSpace(fileName)))
	if base == "/" || base == "." || base == "" {
		return "", fmt.Errorf("wrong file name '%s'", fileName)
	}
	ext := filepath.Ext(base)
	base = strings.ReplaceAll(strings.TrimSuffix(base, ext), " ", "_") + strings.ToLower(ext)
	if id == "" {
		return base, nil
	}
	return id + "/" + base, nil
}

// MakeResultName returns the storage name of the recording result file
func MakeResultName(id, file string) string {
	return id + "/" + file
}

// IsResultFile checks if name is one of the files produced by processing
func IsResultFile(name string) bool {
	return name == TranscriptFile || name == SpeakersFile
}

// SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	return audioExt[strings.ToLower(ext)]
}

// ShouldTranscribe checks if the uploaded content type is queued for processing
func ShouldTranscribe(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return transcribeTypes[ct]
}

// ParamTrue - returns true if string param indicates true value
func ParamTrue(prm string) bool {
	return strings.ToLower(prm) == "true" || prm == "1"
}
