package ports

import (
	"context"
	"io"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// frameDuration is the wall-clock length of one opus frame.
const frameDuration = 20 * time.Millisecond

// AudioResource is a fully prepared piece of audio, encoded as a sequence of
// opus frames ready to send to the gateway.
type AudioResource struct {
	Frames [][]byte
}

// Duration returns the playback length of the resource.
func (r *AudioResource) Duration() time.Duration {
	return time.Duration(len(r.Frames)) * frameDuration
}

// AudioPlayer plays prepared resources on whatever connection it is
// subscribed to. A player plays at most one resource at a time.
type AudioPlayer interface {
	// Play starts playback of the resource and returns once playback has
	// begun, or an error if it could not start before the context ended.
	// Calling Play while another resource is playing stops the previous one.
	Play(ctx context.Context, resource *AudioResource) error

	// Stop aborts the current playback, if any. The finished callback still
	// fires.
	Stop()

	// Playing reports whether a resource is currently being played.
	Playing() bool

	// SetOnFinished registers a callback invoked from the player's goroutine
	// whenever a playback ends, whether it ran to completion or was stopped.
	SetOnFinished(fn func())

	// Close stops playback and releases the player. The finished callback
	// does not fire for a playback aborted by Close.
	Close()
}

// PlayerFactory creates players bound to a guild.
type PlayerFactory interface {
	NewPlayer(guildID snowflake.ID) AudioPlayer
}

// ResourceBuilder converts raw audio into playable resources.
type ResourceBuilder interface {
	// BuildSpeech encodes synthesized PCM into an audio resource.
	BuildSpeech(speech *SynthesizedSpeech) (*AudioResource, error)

	// BuildSound decodes a stored sound clip into an audio resource.
	BuildSound(r io.Reader) (*AudioResource, error)
}
