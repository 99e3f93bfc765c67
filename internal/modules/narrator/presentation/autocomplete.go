package presentation

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// maxAutocompleteChoices is Discord's limit on autocomplete results.
const maxAutocompleteChoices = 25

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	sounds ports.SoundLibrary
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(sounds ports.SoundLibrary) *AutocompleteHandler {
	return &AutocompleteHandler{sounds: sounds}
}

// HandleSound handles autocomplete for the /sound name option, offering all
// library clips whose name starts with the typed prefix.
func (h *AutocompleteHandler) HandleSound(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var prefix string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "name" && opt.Focused {
			prefix = opt.StringValue()
			break
		}
	}
	prefix = strings.ToLower(prefix)

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxAutocompleteChoices)
	for _, name := range h.sounds.Names() {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: name,
		})
		if len(choices) >= maxAutocompleteChoices {
			break
		}
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
}
