package diag

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/enderliker/wawawa/internal/bot"
	"github.com/enderliker/wawawa/internal/modules/diag/application"
	"github.com/enderliker/wawawa/internal/modules/diag/presentation"
)

func init() {
	bot.Register(&DiagModule{})
}

// DiagModule provides diagnostics commands like /ping.
type DiagModule struct {
	statusHandler *presentation.StatusHandler
}

// Name returns the module name.
func (m *DiagModule) Name() string {
	return "diag"
}

// Commands returns the slash commands for this module.
func (m *DiagModule) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Show gateway latency and uptime",
		},
	}
}

// CommandHandlers returns the command handlers for this module.
func (m *DiagModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"ping": m.statusHandler.Handle,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *DiagModule) EventHandlers() []bot.EventHandler {
	return nil
}

// Init initializes the module.
func (m *DiagModule) Init(deps bot.ModuleDependencies) error {
	var latency application.LatencyProvider = zeroLatency{}
	if deps.Session != nil {
		latency = deps.Session
	}
	m.statusHandler = presentation.NewStatusHandler(application.NewStatusService(latency))
	return nil
}

// Shutdown cleans up module resources.
func (m *DiagModule) Shutdown() error {
	return nil
}

// zeroLatency stands in for the session when the bot runs without Discord,
// e.g. in tests.
type zeroLatency struct{}

func (zeroLatency) HeartbeatLatency() time.Duration {
	return 0
}
