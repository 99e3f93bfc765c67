package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// GuildSettings stores per-guild narrator preferences.
type GuildSettings interface {
	// Persistent reports whether the bot should stay in the voice channel
	// when the owner leaves.
	Persistent(ctx context.Context, guildID snowflake.ID) (bool, error)

	// SetPersistent updates the stay-connected preference for a guild.
	SetPersistent(ctx context.Context, guildID snowflake.ID, persistent bool) error
}
