package ports

import "context"

// SynthesizedSpeech is raw PCM audio produced by a speech synthesizer,
// signed 16-bit little-endian samples.
type SynthesizedSpeech struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// SpeechSynthesizer converts text into speech audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*SynthesizedSpeech, error)
}
