package domain

import (
	"strings"
	"unicode"
)

// SegmentKind distinguishes synthesized speech from pre-recorded sounds.
type SegmentKind int

const (
	SegmentSpeech SegmentKind = iota // Text to be synthesized
	SegmentSound                     // A named clip from the sound library
)

// String returns a human-readable representation of the segment kind.
func (k SegmentKind) String() string {
	if k == SegmentSound {
		return "sound"
	}
	return "speech"
}

// Segment is one unit of narration: either a run of text to synthesize or a
// single sound effect to play.
type Segment struct {
	Kind  SegmentKind
	Text  string // Speech text; empty for sounds
	Sound string // Sound token; empty for speech
}

// SpeechSegment builds a speech segment from text.
func SpeechSegment(text string) Segment {
	return Segment{Kind: SegmentSpeech, Text: text}
}

// SoundSegment builds a sound segment from a library token.
func SoundSegment(token string) Segment {
	return Segment{Kind: SegmentSound, Sound: token}
}

// SoundResolver reports whether a token names a known sound.
type SoundResolver func(token string) bool

// SplitSegments turns sanitized text into an ordered list of segments. Tokens
// matching the resolver (with edge punctuation trimmed) become standalone
// sound segments; consecutive non-matching tokens are rejoined into a single
// speech segment so ordering around sounds is preserved exactly.
//
// "a hmph ok" with hmph resolving yields [speech "a", sound "hmph",
// speech "ok"]; with nothing resolving it yields the single speech segment
// "a hmph ok".
func SplitSegments(text string, resolve SoundResolver) []Segment {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	var segments []Segment
	var run []string

	flush := func() {
		if len(run) > 0 {
			segments = append(segments, SpeechSegment(strings.Join(run, " ")))
			run = run[:0]
		}
	}

	for _, token := range tokens {
		trimmed := strings.TrimFunc(token, unicode.IsPunct)
		if trimmed != "" && resolve != nil && resolve(trimmed) {
			flush()
			segments = append(segments, SoundSegment(trimmed))
			continue
		}
		run = append(run, token)
	}
	flush()

	return segments
}
