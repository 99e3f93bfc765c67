package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// FollowConfig controls how the owner's movements are followed.
type FollowConfig struct {
	// OwnerID is the only user whose presence changes are acted on.
	OwnerID snowflake.ID
	// DebounceDelay is how long a guild's presence changes are collected
	// before acting, collapsing rapid flapping into one decision.
	DebounceDelay time.Duration
}

// ConnectionControl is the slice of the connection supervisor the follow
// layer drives.
type ConnectionControl interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Move(ctx context.Context, guildID, channelID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) error
}

var _ ConnectionControl = (*ConnectionService)(nil)

// VoiceStateChange describes one owner presence change: the voice channel
// before and after. Zero means not in any channel.
type VoiceStateChange struct {
	GuildID snowflake.ID
	UserID  snowflake.ID
	Before  snowflake.ID
	After   snowflake.ID
}

// pendingChange accumulates a guild's presence changes during the debounce
// window: the before-channel of the oldest change and the after-channel of
// the newest, which together give the burst's net transition.
type pendingChange struct {
	before snowflake.ID
	after  snowflake.ID
	timer  *time.Timer
}

// FollowService watches the owner's voice channel membership and keeps the
// bot's connection following it: join when the owner appears, move when
// they switch channels, leave when they disappear.
type FollowService struct {
	connections ConnectionControl
	settings    ports.GuildSettings
	config      FollowConfig

	mu      sync.Mutex
	pending map[snowflake.ID]*pendingChange
	closed  bool
}

// NewFollowService creates a FollowService.
func NewFollowService(connections ConnectionControl, settings ports.GuildSettings, config FollowConfig) *FollowService {
	return &FollowService{
		connections: connections,
		settings:    settings,
		config:      config,
		pending:     make(map[snowflake.ID]*pendingChange),
	}
}

// HandleVoiceState feeds one raw presence change into the debouncer.
// Changes for anyone but the owner are ignored. Each new change for a guild
// cancels and replaces the pending timer, so a burst of rapid switches
// produces a single decision reflecting where the owner started and ended
// up.
func (f *FollowService) HandleVoiceState(change VoiceStateChange) {
	if change.UserID != f.config.OwnerID {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	p := &pendingChange{before: change.Before, after: change.After}
	if prev, ok := f.pending[change.GuildID]; ok {
		prev.timer.Stop()
		p.before = prev.before
	}
	f.pending[change.GuildID] = p
	p.timer = time.AfterFunc(f.config.DebounceDelay, func() {
		f.fire(change.GuildID, p)
	})
}

// Close cancels every pending follow decision. Used at shutdown.
func (f *FollowService) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for guildID, p := range f.pending {
		p.timer.Stop()
		delete(f.pending, guildID)
	}
}

// fire acts on a guild's debounced net transition. A newer change may have
// replaced this entry while the timer was firing; such stale fires are
// discarded by identity.
func (f *FollowService) fire(guildID snowflake.ID, p *pendingChange) {
	f.mu.Lock()
	if f.closed || f.pending[guildID] != p {
		f.mu.Unlock()
		return
	}
	delete(f.pending, guildID)
	before, after := p.before, p.after
	f.mu.Unlock()

	ctx := context.Background()
	switch {
	case before == after:
		// Mute and deafen toggles land here; nothing to follow.
	case after == 0:
		f.handleLeave(ctx, guildID)
	case before == 0:
		slog.Info("following owner into voice channel", "guild", guildID, "channel", after)
		if err := f.connections.Join(ctx, guildID, after); err != nil {
			slog.Error("failed to follow owner into voice channel",
				"guild", guildID, "channel", after, "error", err)
		}
	default:
		slog.Info("following owner to another voice channel", "guild", guildID, "channel", after)
		if err := f.connections.Move(ctx, guildID, after); err != nil {
			slog.Error("failed to follow owner to another voice channel",
				"guild", guildID, "channel", after, "error", err)
		}
	}
}

// handleLeave disconnects after the owner left, unless the guild is in
// persistent mode, in which case the session is kept as is. A settings read
// failure also keeps the session; dropping a live connection over it would
// be worse.
func (f *FollowService) handleLeave(ctx context.Context, guildID snowflake.ID) {
	persistent, err := f.settings.Persistent(ctx, guildID)
	if err != nil {
		slog.Error("failed to read persistent mode, staying connected",
			"guild", guildID, "error", err)
		return
	}
	if persistent {
		slog.Info("owner left voice channel, staying connected", "guild", guildID)
		return
	}

	slog.Info("owner left voice channel, disconnecting", "guild", guildID)
	if err := f.connections.Leave(ctx, guildID); err != nil {
		slog.Error("failed to leave voice channel", "guild", guildID, "error", err)
	}
}
