package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// SessionState represents the lifecycle state of a guild voice session.
type SessionState int

const (
	SessionIdle          SessionState = iota // No connection and no work in progress
	SessionConnecting                        // A connection attempt is in flight
	SessionReady                             // Connection established, playback possible
	SessionMoving                            // Tearing down one connection to dial another channel
	SessionDisconnecting                     // Deliberate teardown in progress
	SessionBackoff                           // Waiting out a delay before the next attempt
)

// String returns a human-readable representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionReady:
		return "ready"
	case SessionMoving:
		return "moving"
	case SessionDisconnecting:
		return "disconnecting"
	case SessionBackoff:
		return "backoff"
	default:
		return "idle"
	}
}

// IsTransitional returns true while the session is between stable states,
// i.e. a connection attempt or teardown is still running.
func (s SessionState) IsTransitional() bool {
	switch s {
	case SessionConnecting, SessionMoving, SessionDisconnecting, SessionBackoff:
		return true
	default:
		return false
	}
}

// CanPlay returns true if the state permits audio playback.
func (s SessionState) CanPlay() bool {
	return s == SessionReady
}

// validSessionTransitions enumerates the allowed state machine edges.
// Idle is both the initial state and the terminal state of every teardown.
var validSessionTransitions = map[SessionState][]SessionState{
	SessionIdle:          {SessionConnecting, SessionMoving},
	SessionConnecting:    {SessionReady, SessionBackoff, SessionIdle},
	SessionReady:         {SessionMoving, SessionDisconnecting, SessionIdle},
	SessionMoving:        {SessionConnecting, SessionIdle},
	SessionDisconnecting: {SessionIdle},
	SessionBackoff:       {SessionConnecting, SessionIdle},
}

// ValidSessionTransition reports whether moving from one session state to
// another is a legal state machine edge. Self-transitions are not edges.
func ValidSessionTransition(from, to SessionState) bool {
	for _, next := range validSessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SessionSnapshot is a point-in-time view of a guild voice session. It is a
// plain value: reading one never blocks on session lifecycle work.
type SessionSnapshot struct {
	State     SessionState
	ChannelID snowflake.ID // Zero unless a connection exists
	Retries   int          // Failed attempts in the current operation
	LastError error        // Most recent connection failure, if any
}

// Connected returns true if the snapshot shows an established connection.
func (s SessionSnapshot) Connected() bool {
	return s.State.CanPlay() && s.ChannelID != 0
}
