package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// VoiceTransport establishes voice connections against the gateway.
type VoiceTransport interface {
	// Connect begins establishing a connection to the given voice channel and
	// returns a handle immediately. Establishment completes asynchronously;
	// callers wait on the handle. An error here means the attempt could not
	// even be started.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (VoiceConnection, error)
}

// VoiceConnection is a handle to one pending or established voice connection.
// Handles are single-use: once destroyed they never become ready again.
type VoiceConnection interface {
	// WaitReady blocks until the connection is established, establishment
	// fails, or the context ends. Readiness is latched: calling WaitReady on
	// an already-established connection returns nil immediately.
	WaitReady(ctx context.Context) error

	// Observe registers the observer for signals after establishment. A
	// connection carries at most one observer; registering replaces any
	// previous one. If the connection is already lost or destroyed, the
	// corresponding callback fires before Observe returns. The returned
	// function removes the observer.
	Observe(observer ConnectionObserver) (remove func())

	// Subscribe routes the player's audio output to this connection,
	// replacing any previous player. Must not block. Returns an error on a
	// destroyed handle.
	Subscribe(player AudioPlayer) error

	// Destroy tears the connection down. Idempotent.
	Destroy() error

	// GuildID returns the guild this connection belongs to.
	GuildID() snowflake.ID

	// ChannelID returns the voice channel this connection is bound to.
	ChannelID() snowflake.ID
}

// ConnectionObserver receives asynchronous connection lifecycle signals.
// Callbacks may be invoked from transport goroutines and must not block.
type ConnectionObserver interface {
	// OnReady fires when the connection (re-)establishes, including recovery
	// after a transient loss.
	OnReady()

	// OnDisconnected fires when the connection drops without the owner
	// having destroyed it. A recovery may follow.
	OnDisconnected()

	// OnDestroyed fires once when the connection is torn down for good.
	OnDestroyed()
}
