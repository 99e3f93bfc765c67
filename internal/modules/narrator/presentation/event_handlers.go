package presentation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/usecases"
)

// EventHandlers handles Discord gateway events for the narrator.
type EventHandlers struct {
	ownerID     snowflake.ID
	follow      *usecases.FollowService
	narration   *usecases.NarrationService
	connections *usecases.ConnectionService
}

// NewEventHandlers creates a new EventHandlers.
func NewEventHandlers(
	ownerID snowflake.ID,
	follow *usecases.FollowService,
	narration *usecases.NarrationService,
	connections *usecases.ConnectionService,
) *EventHandlers {
	return &EventHandlers{
		ownerID:     ownerID,
		follow:      follow,
		narration:   narration,
		connections: connections,
	}
}

// HandleVoiceStateUpdate feeds the owner's voice channel changes into the
// follow debouncer. Everyone else's movements are ignored.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	userID, err := snowflake.Parse(event.UserID)
	if err != nil || userID != h.ownerID {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	var before snowflake.ID
	if event.BeforeUpdate != nil && event.BeforeUpdate.ChannelID != "" {
		before, err = snowflake.Parse(event.BeforeUpdate.ChannelID)
		if err != nil {
			slog.Error("failed to parse previous channel ID in voice state update", "error", err)
			return
		}
	}

	var after snowflake.ID
	if event.ChannelID != "" {
		after, err = snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
	}

	h.follow.HandleVoiceState(usecases.VoiceStateChange{
		GuildID: guildID,
		UserID:  userID,
		Before:  before,
		After:   after,
	})
}

// HandleMessageCreate reads the owner's guild messages aloud while the bot
// holds a ready voice connection in that guild.
func (h *EventHandlers) HandleMessageCreate(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m.Author == nil || m.GuildID == "" || m.Content == "" {
		return
	}

	userID, err := snowflake.Parse(m.Author.ID)
	if err != nil || userID != h.ownerID {
		return
	}

	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in message create", "error", err)
		return
	}

	if !h.connections.IsReady(guildID) {
		return
	}

	_, err = h.narration.Enqueue(context.Background(), guildID, m.Content)
	switch {
	case err == nil:
	case errors.Is(err, usecases.ErrRateLimited), errors.Is(err, usecases.ErrEmptyInput):
		// Expected for chatty or mention-only messages; not worth a warning.
		slog.Debug("skipped auto-read message", "guild", guildID, "reason", err)
	default:
		slog.Warn("failed to auto-read message", "guild", guildID, "error", err)
	}
}
