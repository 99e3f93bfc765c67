package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
)

// frameSendTimeout is how long a single frame may wait to be accepted by the
// gateway before the playback is abandoned. Hitting it means the connection
// has stopped draining frames.
const frameSendTimeout = 5 * time.Second

// ErrPlayerClosed is returned when Play is called on a closed player.
var ErrPlayerClosed = errors.New("audio player closed")

// errPlaybackAborted reports a playback stopped before its first frame was
// accepted.
var errPlaybackAborted = errors.New("playback aborted before start")

// playbackRun is the lifetime of one resource being played.
type playbackRun struct {
	stop     chan struct{} // closed to abort the run
	done     chan struct{} // closed when the pump goroutine exits
	stopOnce sync.Once
}

func (r *playbackRun) abort() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// OpusPlayer delivers prepared opus frames to whatever voice connection it
// is attached to, one resource at a time. Frame pacing is left to the
// gateway connection, which drains its send channel at the opus frame rate.
type OpusPlayer struct {
	guildID snowflake.ID

	mu         sync.Mutex
	conn       *discordVoiceConnection
	run        *playbackRun
	onFinished func()
	closed     bool
}

// attach points the player at a voice connection. Takes effect on the next
// Play; a run already in flight keeps its sink.
func (p *OpusPlayer) attach(conn *discordVoiceConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
}

// Play starts playback of the resource and returns once the first frame has
// been accepted. A resource already playing is stopped first.
func (p *OpusPlayer) Play(ctx context.Context, resource *ports.AudioResource) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	prev := p.run
	p.mu.Unlock()

	if prev != nil {
		prev.abort()
		<-prev.done
	}

	run := &playbackRun{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	started := make(chan error, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.run = run
	p.mu.Unlock()

	go p.pump(run, resource, started)

	select {
	case err := <-started:
		return err
	case <-ctx.Done():
		run.abort()
		return ctx.Err()
	}
}

// Stop aborts the current playback, if any, and returns once it has halted.
func (p *OpusPlayer) Stop() {
	p.mu.Lock()
	run := p.run
	p.mu.Unlock()
	if run == nil {
		return
	}
	run.abort()
	<-run.done
}

// Playing reports whether a resource is currently being played.
func (p *OpusPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// SetOnFinished registers the playback-ended callback.
func (p *OpusPlayer) SetOnFinished(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinished = fn
}

// Close stops playback and releases the player. The finished callback does
// not fire for a playback aborted this way.
func (p *OpusPlayer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	run := p.run
	p.mu.Unlock()

	if run != nil {
		run.abort()
		<-run.done
	}
}

// pump pushes the resource's frames into the gateway connection. It signals
// started exactly once: nil after the first frame is accepted, or the reason
// playback never began.
func (p *OpusPlayer) pump(run *playbackRun, resource *ports.AudioResource, started chan<- error) {
	defer close(run.done)

	playbackBegun := false
	defer func() {
		p.mu.Lock()
		if p.run == run {
			p.run = nil
		}
		fn := p.onFinished
		closed := p.closed
		p.mu.Unlock()

		if playbackBegun && !closed && fn != nil {
			fn()
		}
	}()

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		started <- errors.New("player not attached to a voice connection")
		return
	}
	sink, err := conn.sender()
	if err != nil {
		started <- err
		return
	}

	if err := sink.Speaking(true); err != nil {
		started <- fmt.Errorf("failed to set speaking state: %w", err)
		return
	}
	defer func() {
		if err := sink.Speaking(false); err != nil {
			slog.Debug("failed to clear speaking state", "guild", p.guildID, "error", err)
		}
	}()

	for _, frame := range resource.Frames {
		select {
		case <-run.stop:
			if !playbackBegun {
				started <- errPlaybackAborted
			}
			return
		case sink.OpusSend <- frame:
			if !playbackBegun {
				playbackBegun = true
				started <- nil
			}
		case <-time.After(frameSendTimeout):
			if !playbackBegun {
				started <- errors.New("voice connection not accepting frames")
			} else {
				slog.Warn("voice connection stopped accepting frames, dropping playback",
					"guild", p.guildID)
			}
			return
		}
	}
}

// OpusPlayerFactory creates OpusPlayers.
type OpusPlayerFactory struct{}

// NewOpusPlayerFactory creates a new OpusPlayerFactory.
func NewOpusPlayerFactory() *OpusPlayerFactory {
	return &OpusPlayerFactory{}
}

// NewPlayer creates a player for the given guild.
func (f *OpusPlayerFactory) NewPlayer(guildID snowflake.ID) ports.AudioPlayer {
	return &OpusPlayer{guildID: guildID}
}

// Ensure the player implements the port interfaces.
var (
	_ ports.AudioPlayer   = (*OpusPlayer)(nil)
	_ ports.PlayerFactory = (*OpusPlayerFactory)(nil)
)
