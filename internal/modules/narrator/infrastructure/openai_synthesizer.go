package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/sashabaranov/go-openai"
)

// synthesizedSampleRate is the sample rate of the OpenAI PCM response
// format: 24 kHz signed 16-bit little-endian mono.
const synthesizedSampleRate = 24000

// OpenAISynthesizer converts text to speech through the OpenAI audio API.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAISynthesizer creates a new OpenAISynthesizer.
func NewOpenAISynthesizer(apiKey, model, voice string) *OpenAISynthesizer {
	config := openai.DefaultConfig(apiKey)
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(config),
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
	}
}

// Synthesize requests PCM speech audio for the given text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (*ports.SynthesizedSpeech, error) {
	response, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer response.Close()

	pcm, err := io.ReadAll(response)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("speech response contained no audio")
	}

	return &ports.SynthesizedSpeech{
		PCM:        pcm,
		SampleRate: synthesizedSampleRate,
		Channels:   1,
	}, nil
}

// Ensure OpenAISynthesizer implements the port interface.
var _ ports.SpeechSynthesizer = (*OpenAISynthesizer)(nil)
