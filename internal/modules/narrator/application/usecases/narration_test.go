package usecases

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/domain"
)

type narrationFixture struct {
	source  *mockConnectionSource
	synth   *mockSynthesizer
	sounds  *mockSoundLibrary
	builder *mockResourceBuilder
	players *mockPlayerFactory
	service *NarrationService
}

// newNarrationFixture wires a NarrationService against mocks. With hold set,
// players stay playing until finish is called, so tests can observe the
// queue mid-flight.
func newNarrationFixture(sounds *mockSoundLibrary, hold bool) *narrationFixture {
	f := &narrationFixture{
		source:  newMockConnectionSource(),
		synth:   &mockSynthesizer{},
		sounds:  sounds,
		builder: &mockResourceBuilder{},
		players: &mockPlayerFactory{hold: hold},
	}
	f.service = NewNarrationService(f.source, f.synth, f.sounds, f.builder, f.players, NarrationConfig{
		SynthesisTimeout:     time.Second,
		PlaybackStartTimeout: time.Second,
	})
	return f
}

func (f *narrationFixture) connect(guildID, channelID snowflake.ID) *mockConnection {
	conn := &mockConnection{guildID: guildID, channelID: channelID}
	f.source.set(guildID, conn)
	return conn
}

func TestNarrationService_Enqueue(t *testing.T) {
	guildID := snowflake.ID(100)

	tests := []struct {
		name         string
		text         string
		disconnected bool
		wantErr      error
		wantCount    int
		wantSynth    []string
		wantPlayed   []string
	}{
		{
			name:       "plain speech",
			text:       "hello world",
			wantCount:  1,
			wantSynth:  []string{"hello world"},
			wantPlayed: []string{"hello world"},
		},
		{
			name:       "sound tokens split the text",
			text:       "a hmph ok",
			wantCount:  3,
			wantSynth:  []string{"a", "ok"},
			wantPlayed: []string{"a", "clip:hmph", "ok"},
		},
		{
			name:       "edge punctuation does not hide a sound token",
			text:       "wow, hmph!",
			wantCount:  2,
			wantSynth:  []string{"wow,"},
			wantPlayed: []string{"wow,", "clip:hmph"},
		},
		{
			name:       "mentions are sanitized before speaking",
			text:       "Hello <@123> check this @everyone",
			wantCount:  1,
			wantSynth:  []string{"Hello check this"},
			wantPlayed: []string{"Hello check this"},
		},
		{
			name:    "empty input",
			text:    "",
			wantErr: ErrEmptyInput,
		},
		{
			name:    "whitespace only",
			text:    "   ",
			wantErr: ErrEmptyInput,
		},
		{
			name:    "nothing left after sanitization",
			text:    "<@123> <#456>",
			wantErr: ErrEmptyInput,
		},
		{
			name:         "not connected",
			text:         "hello",
			disconnected: true,
			wantErr:      ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNarrationFixture(newMockSoundLibrary("hmph"), false)
			if !tt.disconnected {
				f.connect(guildID, snowflake.ID(200))
			}

			count, err := f.service.Enqueue(context.Background(), guildID, tt.text)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				if f.service.Pending(guildID) != 0 {
					t.Error("expected queue to stay untouched")
				}
				if f.players.playedTotal() != 0 {
					t.Error("expected nothing to play")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("expected %d segments, got %d", tt.wantCount, count)
			}

			waitUntil(t, time.Second, "all segments to play", func() bool {
				return f.players.playedTotal() == len(tt.wantPlayed)
			})
			if got := f.players.lastPlayer().playedFrames(); !slices.Equal(got, tt.wantPlayed) {
				t.Errorf("expected played frames %v, got %v", tt.wantPlayed, got)
			}
			if got := f.synth.synthesized(); !slices.Equal(got, tt.wantSynth) {
				t.Errorf("expected synthesized texts %v, got %v", tt.wantSynth, got)
			}
		})
	}
}

func TestNarrationService_Enqueue_RateLimited(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary(), false)
	f.service = NewNarrationService(f.source, f.synth, f.sounds, f.builder, f.players, NarrationConfig{
		MinRequestInterval:   time.Hour,
		SynthesisTimeout:     time.Second,
		PlaybackStartTimeout: time.Second,
	})
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to play", func() bool {
		return f.players.playedTotal() == 1
	})

	_, err := f.service.Enqueue(context.Background(), guildID, "second")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if f.service.Pending(guildID) != 0 {
		t.Error("expected rejected request to leave the queue untouched")
	}
	if f.players.playedTotal() != 1 {
		t.Errorf("expected one played segment, got %d", f.players.playedTotal())
	}
}

func TestNarrationService_SingleFlightKeepsOrder(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), true)
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "first hmph second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})
	player := f.players.lastPlayer()
	if !player.Playing() {
		t.Error("expected player to be mid-playback")
	}
	if f.service.Pending(guildID) != 2 {
		t.Errorf("expected two pending segments, got %d", f.service.Pending(guildID))
	}

	player.finish()
	waitUntil(t, time.Second, "second segment to start", func() bool {
		return player.playedCount() == 2
	})
	player.finish()
	waitUntil(t, time.Second, "third segment to start", func() bool {
		return player.playedCount() == 3
	})

	want := []string{"first", "clip:hmph", "second"}
	if got := player.playedFrames(); !slices.Equal(got, want) {
		t.Errorf("expected playback order %v, got %v", want, got)
	}
}

func TestNarrationService_DropsQueueWhenConnectionGone(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), true)
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "first hmph second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})

	f.source.setState(guildID, domain.SessionIdle)
	f.players.lastPlayer().finish()

	waitUntil(t, time.Second, "queue to be dropped", func() bool {
		return f.service.Pending(guildID) == 0
	})
	if f.players.playedTotal() != 1 {
		t.Errorf("expected no further playback, got %d", f.players.playedTotal())
	}
}

func TestNarrationService_QueueSurvivesMove(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph", "boom"), true)
	connA := f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "first hmph second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})
	if connA.subscribeCount() == 0 {
		t.Fatal("expected player to be subscribed to the first connection")
	}

	// The guild starts moving: the old connection is gone but the queue
	// must be held, not dropped.
	f.source.setState(guildID, domain.SessionMoving)
	f.players.lastPlayer().finish()

	time.Sleep(30 * time.Millisecond)
	if pending := f.service.Pending(guildID); pending != 2 {
		t.Fatalf("expected queue to be held during the move, got %d pending", pending)
	}

	// The move lands on a new connection; the next trigger re-subscribes
	// and drains the remaining segments there.
	connB := f.connect(guildID, snowflake.ID(201))
	if err := f.service.EnqueueSound(context.Background(), guildID, "boom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	player := f.players.lastPlayer()
	waitUntil(t, time.Second, "second segment to start", func() bool {
		return player.playedCount() == 2
	})
	player.finish()
	waitUntil(t, time.Second, "third segment to start", func() bool {
		return player.playedCount() == 3
	})
	player.finish()
	waitUntil(t, time.Second, "fourth segment to start", func() bool {
		return player.playedCount() == 4
	})

	if connB.subscribeCount() == 0 {
		t.Error("expected player to be re-subscribed to the new connection")
	}
	want := []string{"first", "clip:hmph", "second", "clip:boom"}
	if got := player.playedFrames(); !slices.Equal(got, want) {
		t.Errorf("expected playback order %v, got %v", want, got)
	}
}

func TestNarrationService_SynthesisFailureContained(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), false)
	f.synth.err = errors.New("tts unavailable")
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "bad hmph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The speech segment fails and is dropped; the sound still plays.
	waitUntil(t, time.Second, "sound segment to play", func() bool {
		return f.players.playedTotal() == 1
	})
	want := []string{"clip:hmph"}
	if got := f.players.lastPlayer().playedFrames(); !slices.Equal(got, want) {
		t.Errorf("expected played frames %v, got %v", want, got)
	}
	waitUntil(t, time.Second, "queue to drain", func() bool {
		return f.service.Pending(guildID) == 0
	})
}

func TestNarrationService_ResourceBuildFailureContained(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), false)
	f.builder.soundErr = errors.New("bad clip data")
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "a hmph b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitUntil(t, time.Second, "speech segments to play", func() bool {
		return f.players.playedTotal() == 2
	})
	want := []string{"a", "b"}
	if got := f.players.lastPlayer().playedFrames(); !slices.Equal(got, want) {
		t.Errorf("expected played frames %v, got %v", want, got)
	}
}

func TestNarrationService_EnqueueSound(t *testing.T) {
	guildID := snowflake.ID(100)

	tests := []struct {
		name         string
		sound        string
		disconnected bool
		wantErr      error
	}{
		{
			name:  "plays a known sound",
			sound: "boom",
		},
		{
			name:    "unknown sound",
			sound:   "kaboom",
			wantErr: ErrUnknownSound,
		},
		{
			name:         "not connected",
			sound:        "boom",
			disconnected: true,
			wantErr:      ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNarrationFixture(newMockSoundLibrary("boom"), false)
			if !tt.disconnected {
				f.connect(guildID, snowflake.ID(200))
			}

			err := f.service.EnqueueSound(context.Background(), guildID, tt.sound)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			waitUntil(t, time.Second, "sound to play", func() bool {
				return f.players.playedTotal() == 1
			})
			want := []string{"clip:boom"}
			if got := f.players.lastPlayer().playedFrames(); !slices.Equal(got, want) {
				t.Errorf("expected played frames %v, got %v", want, got)
			}
		})
	}
}

func TestNarrationService_Skip(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), true)
	f.connect(guildID, snowflake.ID(200))

	if skipped := f.service.Skip(guildID); skipped {
		t.Error("expected skip to report false with nothing playing")
	}

	if _, err := f.service.Enqueue(context.Background(), guildID, "alpha hmph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})

	if skipped := f.service.Skip(guildID); !skipped {
		t.Error("expected skip to report true while playing")
	}
	waitUntil(t, time.Second, "next segment to start after skip", func() bool {
		return f.players.playedTotal() == 2
	})
}

func TestNarrationService_StopClearsQueue(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), true)
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "alpha hmph beta"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})

	dropped := f.service.Stop(guildID)
	if dropped != 2 {
		t.Errorf("expected 2 dropped segments, got %d", dropped)
	}
	if f.service.Pending(guildID) != 0 {
		t.Error("expected empty queue after stop")
	}

	player := f.players.lastPlayer()
	if player.Playing() {
		t.Error("expected playback to be halted")
	}
	if player.isClosed() {
		t.Error("expected player to be kept after stop")
	}

	time.Sleep(20 * time.Millisecond)
	if player.playedCount() != 1 {
		t.Errorf("expected no further playback after stop, got %d", player.playedCount())
	}
}

func TestNarrationService_Cleanup(t *testing.T) {
	guildID := snowflake.ID(100)

	f := newNarrationFixture(newMockSoundLibrary("hmph"), true)
	f.connect(guildID, snowflake.ID(200))

	if _, err := f.service.Enqueue(context.Background(), guildID, "alpha hmph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "first segment to start", func() bool {
		return f.players.playedTotal() == 1
	})
	old := f.players.lastPlayer()

	f.service.Cleanup(guildID)

	if !old.isClosed() {
		t.Error("expected player to be closed")
	}
	if f.service.Pending(guildID) != 0 {
		t.Error("expected no pending segments after cleanup")
	}

	// The guild starts fresh afterwards, with a new player.
	if _, err := f.service.Enqueue(context.Background(), guildID, "again"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, time.Second, "segment to play on the new player", func() bool {
		return f.players.lastPlayer() != old && f.players.lastPlayer().playedCount() == 1
	})
}
