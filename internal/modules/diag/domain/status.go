package domain

import (
	"fmt"
	"time"
)

// StatusReport is a snapshot of the bot's health at one point in time.
type StatusReport struct {
	GatewayLatency time.Duration
	Uptime         time.Duration
}

// FormatLatency renders the gateway latency in whole milliseconds.
func (r StatusReport) FormatLatency() string {
	return fmt.Sprintf("%dms", r.GatewayLatency.Milliseconds())
}

// FormatUptime renders the uptime with second precision, e.g. "1h3m27s".
func (r StatusReport) FormatUptime() string {
	return r.Uptime.Round(time.Second).String()
}
