// Package align merges a transcript with a speaker diarization timeline.
//
// Word mode is time accurate. Proportional mode is an approximation only: it
// distributes transcript tokens over speaker segments by segment duration and
// does not know where a speaker really stopped talking.
package align

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// UnknownSpeaker labels words outside of any diarization segment
	UnknownSpeaker = "Unknown"
	// SingleSpeaker labels the whole transcript when diarization found one speaker
	SingleSpeaker = "A"

	lineSep = "\n\n"
	// guards floor() against float rounding like 1.9999999
	epsilon = 1e-9
)

// ErrNoTranscript is returned when there is no transcript to align
var ErrNoTranscript = errors.New("no transcript")

// Mode tells which alignment strategy produced the result
type Mode int

const (
	// ModePlain - no diarization, plain text returned
	ModePlain Mode = iota
	// ModeSingleSpeaker - one speaker, whole text in one line
	ModeSingleSpeaker
	// ModeWords - word timestamps matched to segments
	ModeWords
	// ModeProportional - tokens distributed by segment duration
	ModeProportional
)

var modeName = map[Mode]string{ModePlain: "plain", ModeSingleSpeaker: "single-speaker",
	ModeWords: "words", ModeProportional: "proportional"}

func (m Mode) String() string {
	return modeName[m]
}

// Degraded returns true if alignment could not use word timings
func (m Mode) Degraded() bool {
	return m == ModePlain || m == ModeProportional
}

// Word is a transcribed word with offsets in seconds
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a diarization segment with offsets in seconds
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Transcript is the speech-to-text output needed for alignment
type Transcript struct {
	Text  string
	Words []Word
}

// Result of the alignment
type Result struct {
	Text     string
	Mode     Mode
	Speakers []string
}

// Align produces speaker labeled text. Segments are used in the given order,
// the first segment containing a word start wins.
func Align(tr *Transcript, segments []Segment) (*Result, error) {
	if tr == nil {
		return nil, ErrNoTranscript
	}
	speakers := Speakers(segments)
	switch {
	case len(segments) == 0:
		return &Result{Text: tr.Text, Mode: ModePlain}, nil
	case len(speakers) == 1:
		return &Result{Text: line(SingleSpeaker, tr.Text), Mode: ModeSingleSpeaker, Speakers: speakers}, nil
	}
	if text, ok := byWords(tr.Words, segments); ok {
		return &Result{Text: text, Mode: ModeWords, Speakers: speakers}, nil
	}
	text, ok := proportional(tr.Text, segments)
	if !ok {
		return &Result{Text: tr.Text, Mode: ModePlain, Speakers: speakers}, nil
	}
	return &Result{Text: text, Mode: ModeProportional, Speakers: speakers}, nil
}

// Speakers returns distinct labels in order of the first appearance
func Speakers(segments []Segment) []string {
	res := []string{}
	seen := map[string]bool{}
	for _, s := range segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			res = append(res, s.Speaker)
		}
	}
	return res
}

// SpeakerAt returns the speaker talking at t
func SpeakerAt(segments []Segment, t float64) string {
	for _, s := range segments {
		if s.Start <= t && t <= s.End {
			return s.Speaker
		}
	}
	return UnknownSpeaker
}

// byWords labels words by segments. Returns false if there is no word text.
func byWords(words []Word, segments []Segment) (string, bool) {
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	lines := []string{}
	current := ""
	var run []string
	for _, w := range sorted {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		sp := SpeakerAt(segments, w.Start)
		if sp != current && len(run) > 0 {
			lines = append(lines, line(current, strings.Join(run, " ")))
			run = nil
		}
		current = sp
		run = append(run, text)
	}
	if len(run) > 0 {
		lines = append(lines, line(current, strings.Join(run, " ")))
	}
	return strings.Join(lines, lineSep), len(lines) > 0
}

// proportional splits text tokens over segments by duration.
// Returns false if nothing can be allocated.
func proportional(text string, segments []Segment) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", false
	}
	total := 0.0
	for _, s := range segments {
		total += duration(s)
	}
	if total <= 0 {
		return "", false
	}

	type part struct {
		speaker string
		tokens  []string
	}
	parts := []*part{}
	pos := 0
	for _, s := range segments {
		if pos >= len(tokens) {
			break
		}
		n := int(math.Floor(float64(len(tokens))*duration(s)/total + epsilon))
		if n < 1 {
			n = 1
		}
		end := pos + n
		if end > len(tokens) {
			end = len(tokens)
		}
		parts = append(parts, &part{speaker: s.Speaker, tokens: tokens[pos:end]})
		pos = end
	}
	if pos < len(tokens) {
		last := parts[len(parts)-1]
		last.tokens = append(last.tokens[:len(last.tokens):len(last.tokens)], tokens[pos:]...)
	}

	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, line(p.speaker, strings.Join(p.tokens, " ")))
	}
	return strings.Join(lines, lineSep), true
}

func duration(s Segment) float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

func line(speaker, text string) string {
	return fmt.Sprintf("[Speaker %s]: %s", speaker, text)
}
