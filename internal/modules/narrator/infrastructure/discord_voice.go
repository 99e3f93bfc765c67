package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// ErrConnectionDestroyed is returned when an operation is attempted on a
// voice connection handle that has already been torn down.
var ErrConnectionDestroyed = errors.New("voice connection destroyed")

// DiscordVoiceTransport establishes voice connections through the discordgo
// gateway. It keeps track of the current handle per guild so that the bot's
// own voice state updates can be routed to it.
type DiscordVoiceTransport struct {
	session *discordgo.Session

	mu    sync.Mutex
	conns map[snowflake.ID]*discordVoiceConnection
}

// NewDiscordVoiceTransport creates a new DiscordVoiceTransport.
func NewDiscordVoiceTransport(session *discordgo.Session) *DiscordVoiceTransport {
	return &DiscordVoiceTransport{
		session: session,
		conns:   make(map[snowflake.ID]*discordVoiceConnection),
	}
}

// Connect starts joining the given voice channel and returns a handle
// immediately. The gateway handshake completes on a background goroutine;
// callers wait on the handle's WaitReady.
func (t *DiscordVoiceTransport) Connect(
	_ context.Context,
	guildID, channelID snowflake.ID,
) (ports.VoiceConnection, error) {
	conn := &discordVoiceConnection{
		transport: t,
		guildID:   guildID,
		channelID: channelID,
		done:      make(chan struct{}),
	}

	t.mu.Lock()
	t.conns[guildID] = conn
	t.mu.Unlock()

	go conn.dial(t.session)

	return conn, nil
}

// OnVoiceStateUpdate routes the bot's own voice state changes to the
// affected guild's connection handle. This must be called from the Discord
// event handler.
func (t *DiscordVoiceTransport) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only the bot's own membership matters here; other users' movements
	// are someone else's concern.
	if t.session.State.User == nil || event.UserID != t.session.State.User.ID {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	t.mu.Lock()
	conn := t.conns[guildID]
	t.mu.Unlock()
	if conn == nil {
		return
	}

	if event.ChannelID == "" {
		conn.markLost()
	} else {
		conn.markRecovered()
	}
}

// forget drops the guild's handle, unless a newer one has replaced it.
func (t *DiscordVoiceTransport) forget(conn *discordVoiceConnection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conns[conn.guildID] == conn {
		delete(t.conns, conn.guildID)
	}
}

// discordVoiceConnection is one single-use voice connection handle. The
// underlying *discordgo.VoiceConnection appears once the gateway handshake
// completes; until then the handle is pending.
type discordVoiceConnection struct {
	transport *DiscordVoiceTransport
	guildID   snowflake.ID
	channelID snowflake.ID

	done chan struct{} // closed when establishment resolves either way

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	dialErr   error
	destroyed bool
	lost      bool
	observer  ports.ConnectionObserver
}

// dial runs the gateway handshake. It may finish after the owner has given
// up on the handle, in which case the channel is left again straight away.
func (c *discordVoiceConnection) dial(session *discordgo.Session) {
	vc, err := session.ChannelVoiceJoin(c.guildID.String(), c.channelID.String(), false, true)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		if err == nil && vc != nil {
			slog.Debug("voice join completed after destroy, disconnecting",
				"guild", c.guildID, "channel", c.channelID)
			if derr := vc.Disconnect(); derr != nil {
				slog.Warn("failed to disconnect abandoned voice connection",
					"guild", c.guildID, "error", derr)
			}
		}
		return
	}
	c.vc = vc
	c.dialErr = err
	c.mu.Unlock()

	close(c.done)
}

// WaitReady blocks until the handshake resolves or the context ends.
// Readiness is latched; on an already-established handle it returns nil
// immediately.
func (c *discordVoiceConnection) WaitReady(ctx context.Context) error {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dialErr != nil {
			return fmt.Errorf("failed to join voice channel: %w", c.dialErr)
		}
		if c.destroyed {
			return ErrConnectionDestroyed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observe registers the observer, replacing any previous one. Signals that
// already happened are replayed so a late registration still learns about
// them.
func (c *discordVoiceConnection) Observe(observer ports.ConnectionObserver) func() {
	c.mu.Lock()
	c.observer = observer
	destroyed := c.destroyed
	lost := c.lost
	c.mu.Unlock()

	if destroyed {
		observer.OnDestroyed()
	} else if lost {
		observer.OnDisconnected()
	}

	return func() {
		c.mu.Lock()
		if c.observer == observer {
			c.observer = nil
		}
		c.mu.Unlock()
	}
}

// Subscribe routes the player's audio output to this connection.
func (c *discordVoiceConnection) Subscribe(player ports.AudioPlayer) error {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return ErrConnectionDestroyed
	}

	opus, ok := player.(*OpusPlayer)
	if !ok {
		return fmt.Errorf("unsupported player type %T", player)
	}
	opus.attach(c)
	return nil
}

// Destroy tears the connection down. Idempotent; a pending dial that
// completes later disconnects itself.
func (c *discordVoiceConnection) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	vc := c.vc
	observer := c.observer
	c.observer = nil
	c.mu.Unlock()

	c.transport.forget(c)

	var err error
	if vc != nil {
		err = vc.Disconnect()
	}
	if observer != nil {
		observer.OnDestroyed()
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect voice: %w", err)
	}
	return nil
}

// GuildID returns the guild this connection belongs to.
func (c *discordVoiceConnection) GuildID() snowflake.ID {
	return c.guildID
}

// ChannelID returns the voice channel this connection is bound to.
func (c *discordVoiceConnection) ChannelID() snowflake.ID {
	return c.channelID
}

// sender returns the live gateway connection for frame delivery.
func (c *discordVoiceConnection) sender() (*discordgo.VoiceConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, ErrConnectionDestroyed
	}
	if c.vc == nil {
		return nil, errors.New("voice connection not established")
	}
	return c.vc, nil
}

// markLost records a gateway-side drop and notifies the observer. The
// handle stays usable; a recovery may follow.
func (c *discordVoiceConnection) markLost() {
	c.mu.Lock()
	if c.destroyed || c.lost {
		c.mu.Unlock()
		return
	}
	c.lost = true
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer.OnDisconnected()
	}
}

// markRecovered clears a previously recorded drop and notifies the observer.
func (c *discordVoiceConnection) markRecovered() {
	c.mu.Lock()
	if c.destroyed || !c.lost {
		c.mu.Unlock()
		return
	}
	c.lost = false
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer.OnReady()
	}
}

// Ensure the adapter implements the port interfaces.
var (
	_ ports.VoiceTransport  = (*DiscordVoiceTransport)(nil)
	_ ports.VoiceConnection = (*discordVoiceConnection)(nil)
)
