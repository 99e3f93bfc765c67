package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/enderliker/wawawa/internal/modules/narrator/domain"
	"golang.org/x/time/rate"
)

// reprocessDelay is how long to wait before re-checking a queue that is held
// because its guild's connection is mid-transition.
const reprocessDelay = 500 * time.Millisecond

// ConnectionSource is the read-only view of the connection supervisor the
// playback layer depends on. It never mutates connection state.
type ConnectionSource interface {
	Connection(guildID snowflake.ID) (ports.VoiceConnection, bool)
	Session(guildID snowflake.ID) (domain.SessionSnapshot, bool)
}

var _ ConnectionSource = (*ConnectionService)(nil)

// NarrationConfig bounds narration intake and playback dispatch.
type NarrationConfig struct {
	// MinRequestInterval is the shortest allowed gap between accepted
	// narration requests per guild.
	MinRequestInterval time.Duration
	// MaxTextChars truncates sanitized text; zero disables truncation.
	MaxTextChars int
	// SynthesisTimeout bounds one synthesizer call.
	SynthesisTimeout time.Duration
	// PlaybackStartTimeout bounds waiting for playback to begin.
	PlaybackStartTimeout time.Duration
}

// guildPlayback holds the ordered narration queue and the single audio
// player for one guild. mu guards every field; it is released around
// synthesis and playback so enqueues never wait on the network.
type guildPlayback struct {
	guildID snowflake.ID

	mu         sync.Mutex
	queue      domain.SegmentQueue
	limiter    *rate.Limiter
	player     ports.AudioPlayer
	boundConn  ports.VoiceConnection
	processing bool
	recheck    *time.Timer
}

// NarrationService turns text into ordered speech and sound segments and
// plays them, one at a time per guild, over whatever connection the
// supervisor currently holds.
type NarrationService struct {
	connections ConnectionSource
	synthesizer ports.SpeechSynthesizer
	sounds      ports.SoundLibrary
	builder     ports.ResourceBuilder
	players     ports.PlayerFactory
	config      NarrationConfig

	mu        sync.Mutex
	playbacks map[snowflake.ID]*guildPlayback
}

// NewNarrationService creates a NarrationService.
func NewNarrationService(
	connections ConnectionSource,
	synthesizer ports.SpeechSynthesizer,
	sounds ports.SoundLibrary,
	builder ports.ResourceBuilder,
	players ports.PlayerFactory,
	config NarrationConfig,
) *NarrationService {
	return &NarrationService{
		connections: connections,
		synthesizer: synthesizer,
		sounds:      sounds,
		builder:     builder,
		players:     players,
		config:      config,
		playbacks:   make(map[snowflake.ID]*guildPlayback),
	}
}

// Enqueue sanitizes the text, splits it into ordered speech and sound
// segments, and queues them for the guild. It returns the number of
// segments queued. Requests arriving faster than the configured interval
// are rejected with ErrRateLimited; text with nothing speakable left after
// sanitization is rejected with ErrEmptyInput.
func (n *NarrationService) Enqueue(ctx context.Context, guildID snowflake.ID, text string) (int, error) {
	gp := n.playback(guildID)

	gp.mu.Lock()
	allowed := gp.limiter.Allow()
	gp.mu.Unlock()
	if !allowed {
		return 0, ErrRateLimited
	}

	conn, ok := n.connections.Connection(guildID)
	if !ok {
		return 0, ErrNotConnected
	}

	sanitized := domain.SanitizeText(text, n.config.MaxTextChars)
	if sanitized == "" {
		return 0, ErrEmptyInput
	}

	segments := domain.SplitSegments(sanitized, func(token string) bool {
		_, ok := n.sounds.Resolve(token)
		return ok
	})
	if len(segments) == 0 {
		return 0, ErrEmptyInput
	}

	gp.mu.Lock()
	gp.queue.Push(segments...)
	if err := n.bindPlayerLocked(gp, conn); err != nil {
		// The segments stay queued; processing retries the bind against
		// whatever connection is current by then.
		gp.mu.Unlock()
		slog.Warn("failed to subscribe narration player", "guild", guildID, "error", err)
	} else {
		gp.mu.Unlock()
	}

	slog.Info("queued narration", "guild", guildID, "segments", len(segments))

	n.triggerProcess(gp)
	return len(segments), nil
}

// EnqueueSound queues a single sound clip by name, bypassing text
// processing. Unknown names are rejected with ErrUnknownSound.
func (n *NarrationService) EnqueueSound(ctx context.Context, guildID snowflake.ID, name string) error {
	gp := n.playback(guildID)

	gp.mu.Lock()
	allowed := gp.limiter.Allow()
	gp.mu.Unlock()
	if !allowed {
		return ErrRateLimited
	}

	if _, ok := n.sounds.Resolve(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	conn, ok := n.connections.Connection(guildID)
	if !ok {
		return ErrNotConnected
	}

	gp.mu.Lock()
	gp.queue.Push(domain.SoundSegment(name))
	if err := n.bindPlayerLocked(gp, conn); err != nil {
		gp.mu.Unlock()
		slog.Warn("failed to subscribe narration player", "guild", guildID, "error", err)
	} else {
		gp.mu.Unlock()
	}

	n.triggerProcess(gp)
	return nil
}

// Skip stops the segment currently playing so the next one can start. It
// reports whether anything was playing.
func (n *NarrationService) Skip(guildID snowflake.ID) bool {
	gp := n.peekPlayback(guildID)
	if gp == nil {
		return false
	}
	gp.mu.Lock()
	player := gp.player
	gp.mu.Unlock()
	if player == nil || !player.Playing() {
		return false
	}
	player.Stop()
	return true
}

// Stop clears the guild's queue and halts the active playback. The player
// is kept for reuse. It returns the number of segments dropped.
func (n *NarrationService) Stop(guildID snowflake.ID) int {
	gp := n.peekPlayback(guildID)
	if gp == nil {
		return 0
	}
	gp.mu.Lock()
	dropped := gp.queue.Clear()
	player := gp.player
	gp.mu.Unlock()
	if player != nil {
		player.Stop()
	}
	return dropped
}

// Pending returns the number of segments waiting in the guild's queue.
func (n *NarrationService) Pending(guildID snowflake.ID) int {
	gp := n.peekPlayback(guildID)
	if gp == nil {
		return 0
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.queue.Len()
}

// Cleanup discards all playback state for the guild: the queue, the rate
// limiter, and the player. The connection supervisor calls it after a
// guild's connection is gone.
func (n *NarrationService) Cleanup(guildID snowflake.ID) {
	n.mu.Lock()
	gp := n.playbacks[guildID]
	delete(n.playbacks, guildID)
	n.mu.Unlock()
	if gp == nil {
		return
	}

	gp.mu.Lock()
	dropped := gp.queue.Clear()
	player := gp.player
	gp.player = nil
	gp.boundConn = nil
	if gp.recheck != nil {
		gp.recheck.Stop()
		gp.recheck = nil
	}
	gp.mu.Unlock()

	if player != nil {
		player.Close()
	}
	if dropped > 0 {
		slog.Info("discarded queued narration", "guild", guildID, "segments", dropped)
	}
}

// playback returns the guild's playback record, creating it on first use.
func (n *NarrationService) playback(guildID snowflake.ID) *guildPlayback {
	n.mu.Lock()
	defer n.mu.Unlock()
	gp, ok := n.playbacks[guildID]
	if !ok {
		gp = &guildPlayback{
			guildID: guildID,
			queue:   domain.NewSegmentQueue(),
			limiter: rate.NewLimiter(rate.Every(n.config.MinRequestInterval), 1),
		}
		n.playbacks[guildID] = gp
	}
	return gp
}

// peekPlayback returns the guild's playback record without creating one.
func (n *NarrationService) peekPlayback(guildID snowflake.ID) *guildPlayback {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playbacks[guildID]
}

// triggerProcess kicks queue processing on its own goroutine. Triggers are
// cheap and idempotent.
func (n *NarrationService) triggerProcess(gp *guildPlayback) {
	go n.process(gp)
}

// process dispatches the head of the queue unless a dispatch is already in
// flight or the player is mid-playback. At most one segment per guild is
// ever being synthesized or played; the processing flag is the sole gate.
func (n *NarrationService) process(gp *guildPlayback) {
	gp.mu.Lock()
	if gp.processing || gp.queue.IsEmpty() {
		gp.mu.Unlock()
		return
	}
	if gp.player != nil && gp.player.Playing() {
		gp.mu.Unlock()
		return
	}
	gp.mu.Unlock()

	conn, ok := n.connections.Connection(gp.guildID)
	if !ok {
		snapshot, _ := n.connections.Session(gp.guildID)
		if snapshot.State.IsTransitional() {
			// A connect or move is in flight; hold the queue and look
			// again shortly.
			n.scheduleRecheck(gp)
			return
		}
		gp.mu.Lock()
		dropped := gp.queue.Clear()
		gp.mu.Unlock()
		if dropped > 0 {
			slog.Warn("dropped queued narration, no voice connection",
				"guild", gp.guildID, "segments", dropped)
		}
		return
	}

	gp.mu.Lock()
	if gp.processing || gp.queue.IsEmpty() {
		gp.mu.Unlock()
		return
	}
	// Re-subscribe against the latest connection in case the guild moved
	// channels since the segment was queued.
	if err := n.bindPlayerLocked(gp, conn); err != nil {
		gp.mu.Unlock()
		slog.Warn("failed to subscribe narration player", "guild", gp.guildID, "error", err)
		return
	}
	gp.processing = true
	item := gp.queue.Pop()
	player := gp.player
	gp.mu.Unlock()

	n.playSegment(player, item, gp.guildID)

	gp.mu.Lock()
	gp.processing = false
	empty := gp.queue.IsEmpty()
	gp.mu.Unlock()
	if !empty {
		n.triggerProcess(gp)
	}
}

// playSegment resolves one segment to a playable resource and starts it.
// Failures are contained to the segment: logged, dropped, and the queue
// keeps moving.
func (n *NarrationService) playSegment(player ports.AudioPlayer, item *domain.QueuedSegment, guildID snowflake.ID) {
	resource, err := n.buildResource(item)
	if err != nil {
		slog.Warn("dropping narration segment",
			"guild", guildID, "kind", item.Kind, "seq", item.Seq, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.PlaybackStartTimeout)
	defer cancel()
	if err := player.Play(ctx, resource); err != nil {
		slog.Warn("failed to start narration playback",
			"guild", guildID, "kind", item.Kind, "seq", item.Seq, "error", err)
	}
}

// buildResource turns a queued segment into playable audio, synthesizing
// speech or reading the stored sound clip.
func (n *NarrationService) buildResource(item *domain.QueuedSegment) (*ports.AudioResource, error) {
	switch item.Kind {
	case domain.SegmentSound:
		source, ok := n.sounds.Resolve(item.Sound)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSound, item.Sound)
		}
		r, err := source.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %q: %w", ErrResourceBuildFailure, item.Sound, err)
		}
		defer r.Close()
		resource, err := n.builder.BuildSound(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResourceBuildFailure, err)
		}
		return resource, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), n.config.SynthesisTimeout)
		defer cancel()
		speech, err := n.synthesizer.Synthesize(ctx, item.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSynthesisFailure, err)
		}
		resource, err := n.builder.BuildSpeech(speech)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResourceBuildFailure, err)
		}
		return resource, nil
	}
}

// bindPlayerLocked ensures the guild has a player subscribed to the given
// connection, creating the player on first use and re-subscribing after a
// channel move. The caller holds gp.mu.
func (n *NarrationService) bindPlayerLocked(gp *guildPlayback, conn ports.VoiceConnection) error {
	if gp.player == nil {
		player := n.players.NewPlayer(gp.guildID)
		player.SetOnFinished(func() {
			n.triggerProcess(gp)
		})
		gp.player = player
	}
	if gp.boundConn == conn {
		return nil
	}
	if err := conn.Subscribe(gp.player); err != nil {
		return err
	}
	gp.boundConn = conn
	return nil
}

// scheduleRecheck arms a one-shot re-examination of the guild's queue. At
// most one is pending per guild.
func (n *NarrationService) scheduleRecheck(gp *guildPlayback) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.recheck != nil {
		return
	}
	gp.recheck = time.AfterFunc(reprocessDelay, func() {
		gp.mu.Lock()
		gp.recheck = nil
		gp.mu.Unlock()
		n.process(gp)
	})
}
