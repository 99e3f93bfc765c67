package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/enderliker/wawawa/internal/modules/narrator/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ConnectionConfig bounds connection establishment and recovery.
type ConnectionConfig struct {
	// ReadyTimeout is how long a single attempt may take to become ready.
	ReadyTimeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BackoffBase and BackoffMax bound the delay between attempts.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// DisconnectGrace is how long a dropped connection may take to recover
	// on its own before the session is declared lost.
	DisconnectGrace time.Duration
}

// guildSession tracks the voice connection lifecycle for a single guild.
//
// lifecycle serializes join, move, and leave; it is held for the entire
// operation, retries included. mu guards the snapshot fields below and is
// never held across blocking calls, so reads stay cheap while an operation
// is in flight.
type guildSession struct {
	guildID snowflake.ID

	lifecycle sync.Mutex

	mu        sync.RWMutex
	state     domain.SessionState
	channelID snowflake.ID
	retries   int
	lastErr   error
	conn      ports.VoiceConnection
	attemptID uuid.UUID
	removeObs func()
}

// setState updates the session state, logging any illegal edge. The caller
// holds gs.mu.
func (gs *guildSession) setState(to domain.SessionState) {
	if gs.state != to && !domain.ValidSessionTransition(gs.state, to) {
		slog.Warn("illegal session state transition",
			"guild", gs.guildID, "from", gs.state, "to", to)
	}
	gs.state = to
}

// ConnectionService supervises per-guild voice connections. It is the only
// component that creates or destroys connections; everything else reads the
// current connection through the accessors and must tolerate it changing
// between reads.
type ConnectionService struct {
	transport ports.VoiceTransport
	config    ConnectionConfig

	mu       sync.Mutex
	sessions map[snowflake.ID]*guildSession
	teardown func(guildID snowflake.ID)
}

// NewConnectionService creates a ConnectionService around the given
// transport.
func NewConnectionService(transport ports.VoiceTransport, config ConnectionConfig) *ConnectionService {
	return &ConnectionService{
		transport: transport,
		config:    config,
		sessions:  make(map[snowflake.ID]*guildSession),
	}
}

// SetTeardownFunc registers a callback invoked after a guild's connection is
// gone, whether deliberately or not. It lets the playback layer release its
// per-guild resources without the two services importing each other.
func (s *ConnectionService) SetTeardownFunc(fn func(guildID snowflake.ID)) {
	s.mu.Lock()
	s.teardown = fn
	s.mu.Unlock()
}

// Join connects the guild to the given voice channel. If the guild is
// already connected to that channel, Join succeeds without side effects; if
// it is connected elsewhere, Join behaves like Move. Join blocks through
// connection establishment, retries included, and reports an error only
// once retries are exhausted.
func (s *ConnectionService) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	gs := s.session(guildID)
	gs.lifecycle.Lock()
	defer gs.lifecycle.Unlock()

	gs.mu.RLock()
	connected := gs.conn != nil
	current := gs.channelID
	gs.mu.RUnlock()

	if connected && current == channelID {
		return nil
	}
	if connected {
		return s.moveLocked(ctx, gs, channelID)
	}
	return s.connectLocked(ctx, gs, channelID)
}

// Move relocates the guild's connection to another voice channel. The old
// connection is destroyed before the new channel is dialed; queued
// narration survives and resumes on the new connection. Moving a guild that
// is not connected degrades to a plain join.
func (s *ConnectionService) Move(ctx context.Context, guildID, channelID snowflake.ID) error {
	gs := s.session(guildID)
	gs.lifecycle.Lock()
	defer gs.lifecycle.Unlock()
	return s.moveLocked(ctx, gs, channelID)
}

// Leave tears down the guild's voice connection. Leaving a guild that is
// not connected is a no-op.
func (s *ConnectionService) Leave(ctx context.Context, guildID snowflake.ID) error {
	gs := s.peekSession(guildID)
	if gs == nil {
		return nil
	}
	gs.lifecycle.Lock()
	defer gs.lifecycle.Unlock()

	gs.mu.Lock()
	conn := gs.conn
	removeObs := gs.removeObs
	if conn == nil {
		gs.mu.Unlock()
		return nil
	}
	gs.setState(domain.SessionDisconnecting)
	gs.conn = nil
	gs.channelID = 0
	gs.removeObs = nil
	gs.mu.Unlock()

	if removeObs != nil {
		removeObs()
	}
	err := conn.Destroy()

	gs.mu.Lock()
	gs.setState(domain.SessionIdle)
	gs.retries = 0
	gs.lastErr = nil
	gs.mu.Unlock()

	s.runTeardown(gs.guildID)

	if err != nil {
		return fmt.Errorf("destroy voice connection: %w", err)
	}
	slog.Info("left voice channel", "guild", guildID)
	return nil
}

// LeaveAll disconnects every guild concurrently. Used at shutdown.
func (s *ConnectionService) LeaveAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]snowflake.ID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			return s.Leave(ctx, id)
		})
	}
	return eg.Wait()
}

// Connection returns the guild's live voice connection, if any.
func (s *ConnectionService) Connection(guildID snowflake.ID) (ports.VoiceConnection, bool) {
	gs := s.peekSession(guildID)
	if gs == nil {
		return nil, false
	}
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.conn == nil {
		return nil, false
	}
	return gs.conn, true
}

// ChannelID returns the voice channel the guild is connected to, if any.
func (s *ConnectionService) ChannelID(guildID snowflake.ID) (snowflake.ID, bool) {
	gs := s.peekSession(guildID)
	if gs == nil {
		return 0, false
	}
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.channelID == 0 {
		return 0, false
	}
	return gs.channelID, true
}

// IsReady reports whether the guild has an established connection.
func (s *ConnectionService) IsReady(guildID snowflake.ID) bool {
	gs := s.peekSession(guildID)
	if gs == nil {
		return false
	}
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.state.CanPlay() && gs.conn != nil
}

// Session returns a snapshot of the guild's session state.
func (s *ConnectionService) Session(guildID snowflake.ID) (domain.SessionSnapshot, bool) {
	gs := s.peekSession(guildID)
	if gs == nil {
		return domain.SessionSnapshot{}, false
	}
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return domain.SessionSnapshot{
		State:     gs.state,
		ChannelID: gs.channelID,
		Retries:   gs.retries,
		LastError: gs.lastErr,
	}, true
}

// session returns the guild's session record, creating it on first use.
func (s *ConnectionService) session(guildID snowflake.ID) *guildSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.sessions[guildID]
	if !ok {
		gs = &guildSession{guildID: guildID}
		s.sessions[guildID] = gs
	}
	return gs
}

// peekSession returns the guild's session record without creating one.
func (s *ConnectionService) peekSession(guildID snowflake.ID) *guildSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[guildID]
}

// moveLocked runs a move with gs.lifecycle already held. It reuses
// connectLocked for the dial rather than going back through Move or Join,
// so the lifecycle lock is never acquired twice.
func (s *ConnectionService) moveLocked(ctx context.Context, gs *guildSession, channelID snowflake.ID) error {
	gs.mu.Lock()
	conn := gs.conn
	current := gs.channelID
	removeObs := gs.removeObs
	if conn == nil {
		gs.mu.Unlock()
		return s.connectLocked(ctx, gs, channelID)
	}
	if current == channelID {
		gs.mu.Unlock()
		return nil
	}
	gs.setState(domain.SessionMoving)
	gs.conn = nil
	gs.channelID = 0
	gs.removeObs = nil
	gs.mu.Unlock()

	if removeObs != nil {
		removeObs()
	}
	if err := conn.Destroy(); err != nil {
		slog.Warn("failed to destroy old voice connection",
			"guild", gs.guildID, "error", err)
	}

	return s.connectLocked(ctx, gs, channelID)
}

// connectLocked dials the channel with bounded retries. The caller holds
// gs.lifecycle. On return the session is either Ready with a live
// connection, or back at Idle with the last failure recorded.
func (s *ConnectionService) connectLocked(ctx context.Context, gs *guildSession, channelID snowflake.ID) error {
	attemptID := uuid.New()

	gs.mu.Lock()
	gs.setState(domain.SessionConnecting)
	gs.retries = 0
	gs.attemptID = attemptID
	gs.mu.Unlock()

	for {
		err := s.attemptConnect(ctx, gs, channelID, attemptID)
		if err == nil {
			return nil
		}

		gs.mu.Lock()
		gs.lastErr = err
		retries := gs.retries
		gs.mu.Unlock()

		if ctx.Err() != nil {
			s.resetIdle(gs)
			return fmt.Errorf("voice connect canceled: %w", ctx.Err())
		}
		if retries >= s.config.MaxRetries {
			s.resetIdle(gs)
			slog.Error("voice connection retries exhausted",
				"guild", gs.guildID, "channel", channelID,
				"attempts", retries+1, "error", err)
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		delay := domain.BackoffDelay(retries, s.config.BackoffBase, s.config.BackoffMax)
		gs.mu.Lock()
		gs.setState(domain.SessionBackoff)
		gs.retries = retries + 1
		gs.mu.Unlock()

		slog.Warn("voice connection attempt failed, backing off",
			"guild", gs.guildID, "channel", channelID,
			"retries", retries+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			s.resetIdle(gs)
			return fmt.Errorf("voice connect canceled: %w", ctx.Err())
		case <-time.After(delay):
		}

		gs.mu.Lock()
		gs.setState(domain.SessionConnecting)
		gs.mu.Unlock()
	}
}

// attemptConnect performs one dial and ready-wait. On success it commits the
// connection to the session and registers the lifecycle observer.
func (s *ConnectionService) attemptConnect(ctx context.Context, gs *guildSession, channelID snowflake.ID, attemptID uuid.UUID) error {
	conn, err := s.transport.Connect(ctx, gs.guildID, channelID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionRejected, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.config.ReadyTimeout)
	err = conn.WaitReady(readyCtx)
	cancel()
	if err != nil {
		// Destroy the partial connection; a late ready on this handle must
		// not leak into the session.
		if derr := conn.Destroy(); derr != nil {
			slog.Warn("failed to destroy partial voice connection",
				"guild", gs.guildID, "error", derr)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrConnectionTimeout, s.config.ReadyTimeout)
		}
		return fmt.Errorf("%w: %w", ErrConnectionRejected, err)
	}

	gs.mu.Lock()
	gs.setState(domain.SessionReady)
	gs.conn = conn
	gs.channelID = channelID
	gs.retries = 0
	gs.lastErr = nil
	gs.mu.Unlock()

	observer := &sessionObserver{
		service:   s,
		session:   gs,
		attemptID: attemptID,
		conn:      conn,
	}
	remove := conn.Observe(observer)

	// The observer may have already torn the session down if the connection
	// died the instant it was established, so re-check before keeping the
	// removal handle.
	gs.mu.Lock()
	if gs.attemptID == attemptID && gs.conn == conn {
		gs.removeObs = remove
		gs.mu.Unlock()
	} else {
		gs.mu.Unlock()
		remove()
	}

	slog.Info("voice connection established",
		"guild", gs.guildID, "channel", channelID)
	return nil
}

// handleConnectionLost finalizes an unexpected connection loss once the
// grace window has passed without recovery. It runs on observer goroutines,
// not under the lifecycle lock, so it re-validates that the lost connection
// is still the session's current one; signals from a superseded attempt are
// discarded.
func (s *ConnectionService) handleConnectionLost(gs *guildSession, attemptID uuid.UUID, conn ports.VoiceConnection) {
	gs.mu.Lock()
	if gs.attemptID != attemptID || gs.conn != conn {
		gs.mu.Unlock()
		return
	}
	removeObs := gs.removeObs
	gs.setState(domain.SessionIdle)
	gs.conn = nil
	gs.channelID = 0
	gs.retries = 0
	gs.removeObs = nil
	gs.mu.Unlock()

	if removeObs != nil {
		removeObs()
	}
	if err := conn.Destroy(); err != nil {
		slog.Warn("failed to destroy lost voice connection",
			"guild", gs.guildID, "error", err)
	}
	slog.Warn("voice connection lost", "guild", gs.guildID)

	s.runTeardown(gs.guildID)
}

// resetIdle returns the session to Idle with no connection. The last error
// is kept for diagnostics.
func (s *ConnectionService) resetIdle(gs *guildSession) {
	gs.mu.Lock()
	gs.setState(domain.SessionIdle)
	gs.conn = nil
	gs.channelID = 0
	gs.retries = 0
	gs.removeObs = nil
	gs.mu.Unlock()
}

func (s *ConnectionService) runTeardown(guildID snowflake.ID) {
	s.mu.Lock()
	fn := s.teardown
	s.mu.Unlock()
	if fn != nil {
		fn(guildID)
	}
}

// sessionObserver watches one established connection for transport-level
// lifecycle signals. A drop is given a grace window to recover on its own
// before the session is declared lost; deliberate teardowns cancel the
// window. Callbacks arrive on transport goroutines.
type sessionObserver struct {
	service   *ConnectionService
	session   *guildSession
	attemptID uuid.UUID
	conn      ports.VoiceConnection

	mu    sync.Mutex
	grace *time.Timer
}

var _ ports.ConnectionObserver = (*sessionObserver)(nil)

func (o *sessionObserver) OnReady() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.grace == nil {
		return
	}
	o.grace.Stop()
	o.grace = nil
	slog.Info("voice connection recovered", "guild", o.session.guildID)
}

func (o *sessionObserver) OnDisconnected() {
	grace := o.service.config.DisconnectGrace
	if grace <= 0 {
		o.service.handleConnectionLost(o.session, o.attemptID, o.conn)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.grace != nil {
		return
	}
	slog.Warn("voice connection dropped, waiting for recovery",
		"guild", o.session.guildID, "grace", grace)

	var timer *time.Timer
	timer = time.AfterFunc(grace, func() {
		o.mu.Lock()
		if o.grace != timer {
			// A recovery beat the timer; nothing to tear down.
			o.mu.Unlock()
			return
		}
		o.grace = nil
		o.mu.Unlock()
		o.service.handleConnectionLost(o.session, o.attemptID, o.conn)
	})
	o.grace = timer
}

func (o *sessionObserver) OnDestroyed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.grace != nil {
		o.grace.Stop()
		o.grace = nil
	}
}
