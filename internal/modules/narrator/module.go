package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/bot"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/usecases"
	"github.com/enderliker/wawawa/internal/modules/narrator/infrastructure"
	"github.com/enderliker/wawawa/internal/modules/narrator/presentation"
)

// shutdownTimeout bounds how long module shutdown waits for guilds to
// disconnect.
const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&NarratorModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*NarratorModule)(nil)

// NarratorModule follows the owner between voice channels and reads their
// text aloud, splicing in sound effects on trigger words.
type NarratorModule struct {
	config *Config

	transport   *infrastructure.DiscordVoiceTransport
	connections *usecases.ConnectionService
	narration   *usecases.NarrationService
	follow      *usecases.FollowService

	handlers      *presentation.Handlers
	autocomplete  *presentation.AutocompleteHandler
	eventHandlers *presentation.EventHandlers
}

// Name returns the module name.
func (m *NarratorModule) Name() string {
	return "narrator"
}

// Commands returns the slash commands for this module.
func (m *NarratorModule) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *NarratorModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":   m.handlers.HandleJoin,
		"leave":  m.handlers.HandleLeave,
		"say":    m.handlers.HandleSay,
		"sound":  m.handlers.HandleSound,
		"skip":   m.handlers.HandleSkip,
		"stop":   m.handlers.HandleStop,
		"stay":   m.handlers.HandleStay,
		"sounds": m.handlers.HandleSounds,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *NarratorModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
		func(s *discordgo.Session, msg *discordgo.MessageCreate) {
			m.eventHandlers.HandleMessageCreate(s, msg)
		},
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			m.handleInteractionCreate(s, i)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *NarratorModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *NarratorModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return errors.New("narrator module requires a Discord session")
	}

	ownerID, err := snowflake.Parse(m.config.OwnerID)
	if err != nil {
		return fmt.Errorf("invalid OWNER_ID: %w", err)
	}

	var sounds ports.SoundLibrary
	if m.config.SoundsDir != "" {
		library, err := infrastructure.NewDiskSoundLibrary(m.config.SoundsDir)
		if err != nil {
			return fmt.Errorf("failed to load sound library: %w", err)
		}
		sounds = library
	} else {
		slog.Warn("no sounds directory configured, sound effects disabled")
		sounds = infrastructure.NullSoundLibrary{}
	}

	m.transport = infrastructure.NewDiscordVoiceTransport(deps.Session)
	synthesizer := infrastructure.NewOpenAISynthesizer(
		m.config.OpenAIAPIKey,
		m.config.TTSModel,
		m.config.TTSVoice,
	)
	builder := infrastructure.NewOpusResourceBuilder()
	players := infrastructure.NewOpusPlayerFactory()
	settings := infrastructure.NewMemorySettings()

	m.connections = usecases.NewConnectionService(m.transport, usecases.ConnectionConfig{
		ReadyTimeout:    m.config.ReadyTimeout,
		MaxRetries:      m.config.MaxRetries,
		BackoffBase:     m.config.BackoffBase,
		BackoffMax:      m.config.BackoffMax,
		DisconnectGrace: m.config.DisconnectGrace,
	})
	m.narration = usecases.NewNarrationService(
		m.connections,
		synthesizer,
		sounds,
		builder,
		players,
		usecases.NarrationConfig{
			MinRequestInterval:   m.config.MinRequestInterval,
			MaxTextChars:         m.config.MaxTextChars,
			SynthesisTimeout:     m.config.SynthesisTimeout,
			PlaybackStartTimeout: m.config.PlaybackStartTimeout,
		},
	)
	// Release a guild's playback resources once its connection is gone.
	m.connections.SetTeardownFunc(m.narration.Cleanup)
	m.follow = usecases.NewFollowService(m.connections, settings, usecases.FollowConfig{
		OwnerID:       ownerID,
		DebounceDelay: m.config.DebounceDelay,
	})

	m.handlers = presentation.NewHandlers(m.connections, m.narration, settings, sounds)
	m.autocomplete = presentation.NewAutocompleteHandler(sounds)
	m.eventHandlers = presentation.NewEventHandlers(ownerID, m.follow, m.narration, m.connections)

	slog.Info("narrator module initialized",
		"owner", ownerID, "sounds", len(sounds.Names()))

	return nil
}

// Shutdown cleans up module resources.
func (m *NarratorModule) Shutdown() error {
	if m.follow != nil {
		m.follow.Close()
	}
	if m.connections != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return m.connections.LeaveAll(ctx)
	}
	return nil
}

// Event handlers.

func (m *NarratorModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	// The transport watches the bot's own membership, the follow layer the
	// owner's; every update is offered to both.
	if m.transport != nil {
		m.transport.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}

func (m *NarratorModule) handleInteractionCreate(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return
	}

	if i.ApplicationCommandData().Name == "sound" {
		m.autocomplete.HandleSound(s, i)
	}
}
