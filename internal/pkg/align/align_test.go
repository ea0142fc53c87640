package align

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		name     string
		tr       *Transcript
		segments []Segment
		want     string
		wantMode Mode
	}{
		{name: "Words", tr: &Transcript{Text: "Hi Bob yes", Words: []Word{{"Hi", 0.0, 0.5}, {"Bob", 0.6, 1.0}, {"yes", 2.1, 2.5}}},
			segments: []Segment{{0.0, 1.0, "S1"}, {2.0, 3.0, "S2"}},
			want:     "[Speaker S1]: Hi Bob\n\n[Speaker S2]: yes", wantMode: ModeWords},
		{name: "Proportional", tr: &Transcript{Text: "one two three four"},
			segments: []Segment{{0, 2, "S1"}, {2, 4, "S2"}},
			want:     "[Speaker S1]: one two\n\n[Speaker S2]: three four", wantMode: ModeProportional},
		{name: "No diarization", tr: &Transcript{Text: " olia  text ", Words: []Word{{"olia", 0, 1}}},
			want: " olia  text ", wantMode: ModePlain},
		{name: "Single speaker", tr: &Transcript{Text: "a b c", Words: []Word{{"a", 0, 1}, {"b", 1, 2}, {"c", 5, 6}}},
			segments: []Segment{{0, 2, "S7"}, {4, 6, "S7"}},
			want:     "[Speaker A]: a b c", wantMode: ModeSingleSpeaker},
		{name: "Single speaker no words", tr: &Transcript{Text: "a b c"},
			segments: []Segment{{0, 2, "S7"}},
			want:     "[Speaker A]: a b c", wantMode: ModeSingleSpeaker},
		{name: "Unknown", tr: &Transcript{Text: "a b c", Words: []Word{{"a", 0, 1}, {"b", 3, 3.5}, {"c", 5, 6}}},
			segments: []Segment{{0, 2, "S1"}, {4, 6, "S2"}},
			want:     "[Speaker S1]: a\n\n[Speaker Unknown]: b\n\n[Speaker S2]: c", wantMode: ModeWords},
		{name: "Trims words", tr: &Transcript{Text: "a b", Words: []Word{{" a", 0, 1}, {"b ", 1, 2}, {" ", 2, 3}}},
			segments: []Segment{{0, 1.5, "S1"}, {1.5, 3, "S2"}},
			want:     "[Speaker S1]: a b", wantMode: ModeWords},
		{name: "Blank words fall back to proportional", tr: &Transcript{Text: "one two three four",
			Words: []Word{{" ", 0, 1}, {"", 2, 3}}},
			segments: []Segment{{0, 2, "S1"}, {2, 4, "S2"}},
			want:     "[Speaker S1]: one two\n\n[Speaker S2]: three four", wantMode: ModeProportional},
		{name: "Blank words and text", tr: &Transcript{Text: " ", Words: []Word{{" ", 0, 1}}},
			segments: []Segment{{0, 2, "S1"}, {2, 4, "S2"}},
			want:     " ", wantMode: ModePlain},
		{name: "Unsorted words", tr: &Transcript{Text: "a b c", Words: []Word{{"c", 5, 6}, {"a", 0, 1}, {"b", 1, 2}}},
			segments: []Segment{{0, 2, "S1"}, {4, 6, "S2"}},
			want:     "[Speaker S1]: a b\n\n[Speaker S2]: c", wantMode: ModeWords},
		{name: "First segment wins", tr: &Transcript{Text: "a b", Words: []Word{{"a", 1, 1.2}, {"b", 3, 3.5}}},
			segments: []Segment{{0, 2, "S2"}, {0.5, 1.5, "S1"}, {2.5, 4, "S1"}},
			want:     "[Speaker S2]: a\n\n[Speaker S1]: b", wantMode: ModeWords},
		{name: "Proportional leftover", tr: &Transcript{Text: "one two three four five"},
			segments: []Segment{{0, 2, "S1"}, {2, 4, "S2"}},
			want:     "[Speaker S1]: one two\n\n[Speaker S2]: three four five", wantMode: ModeProportional},
		{name: "Proportional min one", tr: &Transcript{Text: "one two three four five six seven eight nine ten"},
			segments: []Segment{{0, 0.1, "S1"}, {0.1, 10, "S2"}},
			want:     "[Speaker S1]: one\n\n[Speaker S2]: two three four five six seven eight nine ten", wantMode: ModeProportional},
		{name: "Proportional less tokens", tr: &Transcript{Text: "one"},
			segments: []Segment{{0, 1, "S1"}, {1, 2, "S2"}, {2, 3, "S3"}},
			want:     "[Speaker S1]: one", wantMode: ModeProportional},
		{name: "Proportional empty text", tr: &Transcript{Text: "  "},
			segments: []Segment{{0, 1, "S1"}, {1, 2, "S2"}},
			want:     "  ", wantMode: ModePlain},
		{name: "Proportional zero duration", tr: &Transcript{Text: "one two"},
			segments: []Segment{{1, 1, "S1"}, {2, 1, "S2"}},
			want:     "one two", wantMode: ModePlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Align(tt.tr, tt.segments)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.wantMode, got.Mode)
		})
	}
}

func TestAlign_NoTranscript(t *testing.T) {
	_, err := Align(nil, []Segment{{0, 1, "S1"}})
	assert.ErrorIs(t, err, ErrNoTranscript)
}

var labelRe = regexp.MustCompile(`\[Speaker [^\]]*\]: `)

func stripLabels(s string) string {
	return strings.Join(strings.Fields(labelRe.ReplaceAllString(s, " ")), " ")
}

func TestAlign_WordsReconstructText(t *testing.T) {
	segments := []Segment{{0, 3, "S1"}, {3, 7, "S2"}, {7, 8, "S1"}, {9, 20, "S3"}}
	for n := 1; n < 40; n++ {
		words := make([]Word, 0, n)
		texts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			w := fmt.Sprintf("w%d", i)
			words = append(words, Word{Text: w, Start: float64(i) * 0.5, End: float64(i)*0.5 + 0.4})
			texts = append(texts, w)
		}
		got, err := Align(&Transcript{Text: strings.Join(texts, " "), Words: words}, segments)
		require.Nil(t, err)
		assert.Equal(t, strings.Join(texts, " "), stripLabels(got.Text))
	}
}

func TestAlign_ProportionalKeepsAllTokens(t *testing.T) {
	segSets := [][]Segment{
		{{0, 1, "S1"}, {1, 2, "S2"}},
		{{0, 0.3, "S1"}, {0.3, 7, "S2"}, {7, 7.1, "S1"}, {7.1, 9, "S3"}},
		{{0, 3, "S1"}, {3, 4, "S2"}, {4, 5, "S1"}, {5, 6, "S2"}, {6, 7, "S1"}},
	}
	for _, segments := range segSets {
		for n := 1; n < 50; n++ {
			tokens := make([]string, 0, n)
			for i := 0; i < n; i++ {
				tokens = append(tokens, fmt.Sprintf("t%d", i))
			}
			text := strings.Join(tokens, " ")
			got, err := Align(&Transcript{Text: text}, segments)
			require.Nil(t, err)
			assert.Equal(t, ModeProportional, got.Mode)
			assert.Equal(t, text, stripLabels(got.Text))
			assert.Equal(t, n, len(strings.Fields(stripLabels(got.Text))))
		}
	}
}

func TestAlign_SingleSpeakerOneLine(t *testing.T) {
	for n := 0; n < 20; n++ {
		words := []Word{}
		for i := 0; i < n; i++ {
			words = append(words, Word{Text: "w", Start: float64(i), End: float64(i) + 0.5})
		}
		got, err := Align(&Transcript{Text: "some text", Words: words}, []Segment{{0, 1, "X"}, {3, 4, "X"}})
		require.Nil(t, err)
		assert.True(t, strings.HasPrefix(got.Text, "[Speaker A]: "))
		assert.Equal(t, 1, len(strings.Split(got.Text, "\n")))
	}
}

func TestSpeakers(t *testing.T) {
	assert.Equal(t, []string{"S2", "S1"}, Speakers([]Segment{{0, 1, "S2"}, {1, 2, "S1"}, {2, 3, "S2"}}))
	assert.Equal(t, []string{}, Speakers(nil))
}

func TestSpeakerAt(t *testing.T) {
	segments := []Segment{{0, 1, "S1"}, {1, 2, "S2"}}
	assert.Equal(t, "S1", SpeakerAt(segments, 0))
	assert.Equal(t, "S1", SpeakerAt(segments, 1))
	assert.Equal(t, "S2", SpeakerAt(segments, 1.5))
	assert.Equal(t, UnknownSpeaker, SpeakerAt(segments, 2.5))
}

func TestMode(t *testing.T) {
	assert.Equal(t, "words", ModeWords.String())
	assert.True(t, ModeProportional.Degraded())
	assert.True(t, ModePlain.Degraded())
	assert.False(t, ModeWords.Degraded())
	assert.False(t, ModeSingleSpeaker.Degraded())
}
