package infrastructure

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"layeh.com/gopus"
)

// Discord voice expects 48 kHz stereo opus in 20 ms frames.
const (
	opusSampleRate = 48000
	opusChannels   = 2
	opusFrameSize  = 960 // samples per channel per frame
)

// maxOpusFrameBytes bounds the encoded size of one frame.
const maxOpusFrameBytes = opusFrameSize * opusChannels * 2

// OpusResourceBuilder turns raw audio into gateway-ready opus frames.
// Synthesized speech arrives as PCM and is resampled and encoded here;
// sound clips are stored pre-encoded as length-prefixed opus frames and
// only need scanning.
type OpusResourceBuilder struct{}

// NewOpusResourceBuilder creates a new OpusResourceBuilder.
func NewOpusResourceBuilder() *OpusResourceBuilder {
	return &OpusResourceBuilder{}
}

// BuildSpeech encodes synthesized PCM into an audio resource.
func (b *OpusResourceBuilder) BuildSpeech(speech *ports.SynthesizedSpeech) (*ports.AudioResource, error) {
	if speech == nil || len(speech.PCM) < 2 {
		return nil, errors.New("no audio data")
	}
	if speech.SampleRate <= 0 || speech.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format: %d Hz, %d channels",
			speech.SampleRate, speech.Channels)
	}

	samples := decodePCM16(speech.PCM)
	mono := downmixMono(samples, speech.Channels)
	resampled := resampleLinear(mono, speech.SampleRate, opusSampleRate)
	stereo := duplicateStereo(resampled)

	encoder, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	frameSamples := opusFrameSize * opusChannels
	frames := make([][]byte, 0, len(stereo)/frameSamples+1)
	for start := 0; start < len(stereo); start += frameSamples {
		chunk := stereo[start:min(start+frameSamples, len(stereo))]
		if len(chunk) < frameSamples {
			// Pad the trailing partial frame with silence.
			padded := make([]int16, frameSamples)
			copy(padded, chunk)
			chunk = padded
		}
		frame, err := encoder.Encode(chunk, opusFrameSize, maxOpusFrameBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode opus frame: %w", err)
		}
		frames = append(frames, frame)
	}

	return &ports.AudioResource{Frames: frames}, nil
}

// BuildSound decodes a stored sound clip into an audio resource. Clips are
// sequences of [uint16 little-endian length][opus data] frames.
func (b *OpusResourceBuilder) BuildSound(r io.Reader) (*ports.AudioResource, error) {
	reader := bufio.NewReader(r)

	var frames [][]byte
	for {
		var frameLen uint16
		err := binary.Read(reader, binary.LittleEndian, &frameLen)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame length: %w", err)
		}
		if frameLen == 0 {
			return nil, errors.New("zero-length opus frame")
		}

		frame := make([]byte, frameLen)
		if _, err := io.ReadFull(reader, frame); err != nil {
			return nil, fmt.Errorf("truncated opus frame: %w", err)
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, errors.New("sound clip contains no frames")
	}
	return &ports.AudioResource{Frames: frames}, nil
}

// decodePCM16 reads little-endian signed 16-bit samples.
func decodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// downmixMono averages interleaved channels down to one.
func downmixMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// resampleLinear converts the sample rate by linear interpolation. Plenty
// for synthesized speech.
func resampleLinear(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, outLen)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// duplicateStereo interleaves a mono signal into two identical channels.
func duplicateStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, sample := range mono {
		stereo[i*2] = sample
		stereo[i*2+1] = sample
	}
	return stereo
}

// Ensure OpusResourceBuilder implements the port interface.
var _ ports.ResourceBuilder = (*OpusResourceBuilder)(nil)
