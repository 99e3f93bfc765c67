package infrastructure

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// MemorySettings is an in-memory implementation of GuildSettings. Nothing
// survives a restart; every guild starts with persistent mode off.
type MemorySettings struct {
	mu         sync.RWMutex
	persistent map[snowflake.ID]bool
}

// NewMemorySettings creates a new MemorySettings.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{
		persistent: make(map[snowflake.ID]bool),
	}
}

// Persistent reports whether the guild has persistent mode enabled.
func (s *MemorySettings) Persistent(_ context.Context, guildID snowflake.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persistent[guildID], nil
}

// SetPersistent updates the guild's persistent mode flag.
func (s *MemorySettings) SetPersistent(_ context.Context, guildID snowflake.ID, persistent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persistent[guildID] = persistent
	return nil
}

// Ensure MemorySettings implements GuildSettings.
var _ ports.GuildSettings = (*MemorySettings)(nil)
