package application

import (
	"testing"
	"time"
)

// stubLatency is a test double for LatencyProvider.
type stubLatency struct {
	latency time.Duration
}

func (s *stubLatency) HeartbeatLatency() time.Duration {
	return s.latency
}

func TestStatusService_Report(t *testing.T) {
	svc := NewStatusService(&stubLatency{latency: 42 * time.Millisecond})

	report := svc.Report()

	if report.GatewayLatency != 42*time.Millisecond {
		t.Errorf("expected latency 42ms, got %v", report.GatewayLatency)
	}
	if report.Uptime < 0 {
		t.Errorf("expected non-negative uptime, got %v", report.Uptime)
	}
}

func TestStatusService_UptimeGrows(t *testing.T) {
	svc := NewStatusService(&stubLatency{})

	first := svc.Report().Uptime
	time.Sleep(10 * time.Millisecond)
	second := svc.Report().Uptime

	if second <= first {
		t.Errorf("expected uptime to grow, got %v then %v", first, second)
	}
}
