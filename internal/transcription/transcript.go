package transcription

import (
	"encoding/json"
	"strings"
)

// Segment is one timestamped span of transcript content returned by the
// ASR server. The capitalized JSON field names match the server's wire
// format.
type Segment struct {
	Start   float64 `json:"Start"`
	End     float64 `json:"End"`
	Content string  `json:"Content"`
}

// Transcript is the result of one transcription call. Text is the
// space-joined concatenation of non-bracketed segment contents, trimmed;
// Segments retains every segment the server returned, bracketed markers
// included.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether the transcript carries no usable text.
func (t *Transcript) Empty() bool {
	return t.Text == ""
}

// ParseTranscript parses the accumulated SSE payload as a JSON array of
// segments. A blank accumulator, an empty array, or unparseable JSON all
// yield an empty successful transcript: an utterance with only silence is
// a valid outcome, and the server conflates total parse failure with
// silence, so both map to the same result.
func ParseTranscript(raw string) *Transcript {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &Transcript{Segments: []Segment{}}
	}

	var segments []Segment
	if err := json.Unmarshal([]byte(trimmed), &segments); err != nil || segments == nil {
		return &Transcript{Segments: []Segment{}}
	}

	return &Transcript{
		Text:     joinSegments(segments),
		Segments: segments,
	}
}

// joinSegments concatenates segment contents in order, space separated,
// skipping non-speech markers.
func joinSegments(segments []Segment) string {
	var b strings.Builder

	for _, seg := range segments {
		content := strings.TrimSpace(seg.Content)
		if content == "" || isNonSpeechMarker(content) {
			continue
		}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(content)
	}

	return strings.TrimSpace(b.String())
}

// isNonSpeechMarker reports whether the trimmed content is entirely
// wrapped in bracket delimiters, e.g. "[music]" or "[inaudible]".
func isNonSpeechMarker(content string) bool {
	return len(content) >= 2 && content[0] == '[' && content[len(content)-1] == ']'
}
