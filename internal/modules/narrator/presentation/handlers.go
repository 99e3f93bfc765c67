package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/bot"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// Handlers holds all the command handlers.
type Handlers struct {
	connections *usecases.ConnectionService
	narration   *usecases.NarrationService
	settings    ports.GuildSettings
	sounds      ports.SoundLibrary
}

// NewHandlers creates new Handlers.
func NewHandlers(
	connections *usecases.ConnectionService,
	narration *usecases.NarrationService,
	settings ports.GuildSettings,
	sounds ports.SoundLibrary,
) *Handlers {
	return &Handlers{
		connections: connections,
		narration:   narration,
		settings:    settings,
		sounds:      sounds,
	}
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var channelID snowflake.ID
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			channelID, _ = snowflake.Parse(opt.ChannelValue(s).ID)
		}
	}

	// No channel given: default to the invoker's current voice channel.
	if channelID == 0 {
		vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
		if err != nil || vs.ChannelID == "" {
			return respondError(r, "You are not in a voice channel. Specify one with the channel option.")
		}
		channelID, err = snowflake.Parse(vs.ChannelID)
		if err != nil {
			return respondError(r, "Invalid channel")
		}
	}

	if err := h.connections.Join(context.Background(), guildID, channelID); err != nil {
		return respondError(r, "Could not connect to the voice channel.")
	}

	return respondJoined(r, channelID)
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.connections.Leave(context.Background(), guildID); err != nil {
		return respondError(r, "Could not disconnect cleanly.")
	}

	return respondDisconnected(r)
}

// HandleSay handles the /say command.
func (h *Handlers) HandleSay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var text string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "text" {
			text = opt.StringValue()
		}
	}

	segments, err := h.narration.Enqueue(context.Background(), guildID, text)
	if err != nil {
		return respondError(r, narrationErrorMessage(err))
	}

	return respondQueued(r, segments)
}

// HandleSound handles the /sound command.
func (h *Handlers) HandleSound(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var name string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "name" {
			name = opt.StringValue()
		}
	}

	if err := h.narration.EnqueueSound(context.Background(), guildID, name); err != nil {
		return respondError(r, narrationErrorMessage(err))
	}

	return respondSoundQueued(r, name)
}

// HandleSkip handles the /skip command.
func (h *Handlers) HandleSkip(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if !h.narration.Skip(guildID) {
		return respondError(r, "Nothing is playing.")
	}

	return respondSkipped(r)
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	dropped := h.narration.Stop(guildID)
	return respondStopped(r, dropped)
}

// HandleStay handles the /stay command.
func (h *Handlers) HandleStay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var enabled bool
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "enabled" {
			enabled = opt.BoolValue()
		}
	}

	if err := h.settings.SetPersistent(context.Background(), guildID, enabled); err != nil {
		return respondError(r, "Could not update the setting.")
	}

	return respondStayChanged(r, enabled)
}

// HandleSounds handles the /sounds command.
func (h *Handlers) HandleSounds(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	names := h.sounds.Names()
	if len(names) == 0 {
		return respondError(r, "No sound clips are available.")
	}

	return respondSoundList(r, names)
}

// narrationErrorMessage maps narration errors to user-facing messages.
func narrationErrorMessage(err error) string {
	switch {
	case errors.Is(err, usecases.ErrNotConnected):
		return "I'm not in a voice channel. Use /join first."
	case errors.Is(err, usecases.ErrRateLimited):
		return "Requests are arriving too quickly. Try again in a moment."
	case errors.Is(err, usecases.ErrEmptyInput):
		return "There is nothing speakable in that text."
	case errors.Is(err, usecases.ErrUnknownSound):
		return "I don't know that sound. Use /sounds to list the available clips."
	default:
		return "Something went wrong while queueing the narration."
	}
}

// Response helpers.

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}

func respondJoined(r bot.Responder, channelID snowflake.ID) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: fmt.Sprintf("Connected to <#%d>.", channelID),
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondDisconnected(r bot.Responder) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: "Disconnected.",
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondQueued(r bot.Responder, segments int) error {
	description := "Queued for narration."
	if segments > 1 {
		description = fmt.Sprintf("Queued %d segments for narration.", segments)
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondSoundQueued(r bot.Responder, name string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: fmt.Sprintf("Queued sound **%s**.", name),
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondSkipped(r bot.Responder) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: "Skipped.",
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondStopped(r bot.Responder, dropped int) error {
	description := "Stopped narration."
	if dropped > 0 {
		description = fmt.Sprintf("Stopped narration and dropped %d queued segments.", dropped)
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondStayChanged(r bot.Responder, enabled bool) error {
	description := "I will leave when you leave."
	if enabled {
		description = "I will stay connected when you leave."
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondSoundList(r bot.Responder, names []string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Available sounds",
					Description: "`" + strings.Join(names, "`, `") + "`",
					Color:       colorSuccess,
				},
			},
		},
	})
}
