package presentation

import (
	"github.com/bwmarrin/discordgo"
	"github.com/enderliker/wawawa/internal/bot"
	"github.com/enderliker/wawawa/internal/modules/diag/application"
)

// colorInfo is the embed color for status responses.
const colorInfo = 0x3498DB

// StatusHandler handles the /ping command.
type StatusHandler struct {
	status *application.StatusService
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(status *application.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// Handle processes the ping command and responds with the bot's health.
func (h *StatusHandler) Handle(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	report := h.status.Report()

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title: "Pong!",
					Fields: []*discordgo.MessageEmbedField{
						{
							Name:   "Gateway latency",
							Value:  report.FormatLatency(),
							Inline: true,
						},
						{
							Name:   "Uptime",
							Value:  report.FormatUptime(),
							Inline: true,
						},
					},
					Color: colorInfo,
				},
			},
		},
	})
}
