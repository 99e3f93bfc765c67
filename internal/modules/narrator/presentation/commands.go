package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the narrator module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "Join a voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Voice channel to join (defaults to your current channel)",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildVoice,
						discordgo.ChannelTypeGuildStageVoice,
					},
				},
			},
		},
		{
			Name:        "leave",
			Description: "Leave the voice channel",
		},
		{
			Name:        "say",
			Description: "Read text aloud in the voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Text to read aloud",
					Required:    true,
				},
			},
		},
		{
			Name:        "sound",
			Description: "Play a sound clip",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "name",
					Description:  "Name of the sound clip",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:        "skip",
			Description: "Skip what is currently being read",
		},
		{
			Name:        "stop",
			Description: "Stop narration and clear the queue",
		},
		{
			Name:        "stay",
			Description: "Control whether the bot stays connected when the owner leaves",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Stay connected after the owner leaves",
					Required:    true,
				},
			},
		},
		{
			Name:        "sounds",
			Description: "List available sound clips",
		},
	}
}
