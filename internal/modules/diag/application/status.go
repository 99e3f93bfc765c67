package application

import (
	"time"

	"github.com/enderliker/wawawa/internal/modules/diag/domain"
)

// LatencyProvider reports the current gateway heartbeat latency.
type LatencyProvider interface {
	HeartbeatLatency() time.Duration
}

// StatusService assembles bot health reports.
type StatusService struct {
	latency LatencyProvider
	started time.Time
}

// NewStatusService creates a new StatusService. Uptime counts from this call.
func NewStatusService(latency LatencyProvider) *StatusService {
	return &StatusService{
		latency: latency,
		started: time.Now(),
	}
}

// Report returns the current health snapshot.
func (s *StatusService) Report() domain.StatusReport {
	return domain.StatusReport{
		GatewayLatency: s.latency.HeartbeatLatency(),
		Uptime:         time.Since(s.started),
	}
}
