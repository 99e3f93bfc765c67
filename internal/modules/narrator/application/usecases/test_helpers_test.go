package usecases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/enderliker/wawawa/internal/modules/narrator/application/ports"
	"github.com/enderliker/wawawa/internal/modules/narrator/domain"
)

// waitUntil polls until the condition holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type mockTransport struct {
	mu         sync.Mutex
	connectErr error         // returned by Connect itself
	failWait   int           // connections whose WaitReady fails before one succeeds
	waitDelay  time.Duration // how long WaitReady takes to resolve
	conns      []*mockConnection

	active    atomic.Int32 // connections currently inside WaitReady
	maxActive atomic.Int32
}

func (m *mockTransport) Connect(_ context.Context, guildID, channelID snowflake.ID) (ports.VoiceConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	conn := &mockConnection{
		transport: m,
		guildID:   guildID,
		channelID: channelID,
		waitDelay: m.waitDelay,
	}
	if m.failWait > 0 {
		m.failWait--
		conn.waitErr = errors.New("no ready signal")
	}
	m.conns = append(m.conns, conn)
	return conn, nil
}

func (m *mockTransport) connections() []*mockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockConnection(nil), m.conns...)
}

func (m *mockTransport) lastConnection() *mockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.conns) == 0 {
		return nil
	}
	return m.conns[len(m.conns)-1]
}

type mockConnection struct {
	transport *mockTransport
	guildID   snowflake.ID
	channelID snowflake.ID
	waitErr   error
	waitDelay time.Duration

	mu           sync.Mutex
	destroyed    bool
	observer     ports.ConnectionObserver
	player       ports.AudioPlayer
	subscribes   int
	subscribeErr error
}

func (c *mockConnection) WaitReady(ctx context.Context) error {
	if c.transport != nil {
		n := c.transport.active.Add(1)
		for {
			max := c.transport.maxActive.Load()
			if n <= max || c.transport.maxActive.CompareAndSwap(max, n) {
				break
			}
		}
		defer c.transport.active.Add(-1)
	}
	if c.waitErr != nil {
		return c.waitErr
	}
	if c.waitDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.waitDelay):
		}
	}
	return nil
}

func (c *mockConnection) Observe(observer ports.ConnectionObserver) func() {
	c.mu.Lock()
	c.observer = observer
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		observer.OnDestroyed()
	}
	return func() {
		c.mu.Lock()
		if c.observer == observer {
			c.observer = nil
		}
		c.mu.Unlock()
	}
}

func (c *mockConnection) Subscribe(player ports.AudioPlayer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	if c.destroyed {
		return errors.New("connection destroyed")
	}
	c.player = player
	c.subscribes++
	return nil
}

func (c *mockConnection) Destroy() error {
	c.mu.Lock()
	already := c.destroyed
	c.destroyed = true
	observer := c.observer
	c.mu.Unlock()
	if !already && observer != nil {
		observer.OnDestroyed()
	}
	return nil
}

func (c *mockConnection) GuildID() snowflake.ID   { return c.guildID }
func (c *mockConnection) ChannelID() snowflake.ID { return c.channelID }

func (c *mockConnection) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *mockConnection) subscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

// drop simulates the transport losing the connection.
func (c *mockConnection) drop() {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer.OnDisconnected()
	}
}

// recover simulates the transport re-establishing a dropped connection.
func (c *mockConnection) recover() {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer.OnReady()
	}
}

type mockConnectionSource struct {
	mu     sync.Mutex
	conns  map[snowflake.ID]ports.VoiceConnection
	states map[snowflake.ID]domain.SessionState
}

func newMockConnectionSource() *mockConnectionSource {
	return &mockConnectionSource{
		conns:  make(map[snowflake.ID]ports.VoiceConnection),
		states: make(map[snowflake.ID]domain.SessionState),
	}
}

func (m *mockConnectionSource) Connection(guildID snowflake.ID) (ports.VoiceConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[guildID]
	return conn, ok
}

func (m *mockConnectionSource) Session(guildID snowflake.ID) (domain.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[guildID]
	if !ok {
		return domain.SessionSnapshot{}, false
	}
	snapshot := domain.SessionSnapshot{State: state}
	if conn, ok := m.conns[guildID]; ok {
		snapshot.ChannelID = conn.ChannelID()
	}
	return snapshot, true
}

func (m *mockConnectionSource) set(guildID snowflake.ID, conn ports.VoiceConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[guildID] = conn
	m.states[guildID] = domain.SessionReady
}

func (m *mockConnectionSource) setState(guildID snowflake.ID, state domain.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[guildID] = state
	if !state.CanPlay() {
		delete(m.conns, guildID)
	}
}

type mockSynthesizer struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (m *mockSynthesizer) Synthesize(_ context.Context, text string) (*ports.SynthesizedSpeech, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.err != nil {
		return nil, m.err
	}
	return &ports.SynthesizedSpeech{PCM: []byte(text), SampleRate: 24000, Channels: 1}, nil
}

func (m *mockSynthesizer) synthesized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockSoundSource struct {
	name    string
	data    []byte
	openErr error
}

func (s *mockSoundSource) Name() string { return s.name }

func (s *mockSoundSource) Open() (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

type mockSoundLibrary struct {
	sounds  map[string][]byte
	openErr error
}

func newMockSoundLibrary(names ...string) *mockSoundLibrary {
	lib := &mockSoundLibrary{sounds: make(map[string][]byte)}
	for _, name := range names {
		lib.sounds[name] = []byte("clip:" + name)
	}
	return lib
}

func (m *mockSoundLibrary) Resolve(name string) (ports.SoundSource, bool) {
	data, ok := m.sounds[name]
	if !ok {
		return nil, false
	}
	return &mockSoundSource{name: name, data: data, openErr: m.openErr}, true
}

func (m *mockSoundLibrary) Names() []string {
	names := make([]string, 0, len(m.sounds))
	for name := range m.sounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type mockResourceBuilder struct {
	speechErr error
	soundErr  error
}

func (m *mockResourceBuilder) BuildSpeech(speech *ports.SynthesizedSpeech) (*ports.AudioResource, error) {
	if m.speechErr != nil {
		return nil, m.speechErr
	}
	return &ports.AudioResource{Frames: [][]byte{speech.PCM}}, nil
}

func (m *mockResourceBuilder) BuildSound(r io.Reader) (*ports.AudioResource, error) {
	if m.soundErr != nil {
		return nil, m.soundErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &ports.AudioResource{Frames: [][]byte{data}}, nil
}

type mockPlayer struct {
	hold    bool // stay playing until finish or Stop
	playErr error

	mu         sync.Mutex
	playing    bool
	played     []*ports.AudioResource
	onFinished func()
	closed     bool
}

func (p *mockPlayer) Play(_ context.Context, resource *ports.AudioResource) error {
	p.mu.Lock()
	if p.playErr != nil {
		p.mu.Unlock()
		return p.playErr
	}
	p.played = append(p.played, resource)
	p.playing = p.hold
	fn := p.onFinished
	p.mu.Unlock()
	if !p.hold && fn != nil {
		fn()
	}
	return nil
}

func (p *mockPlayer) Stop() {
	p.mu.Lock()
	wasPlaying := p.playing
	p.playing = false
	fn := p.onFinished
	p.mu.Unlock()
	if wasPlaying && fn != nil {
		fn()
	}
}

func (p *mockPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *mockPlayer) SetOnFinished(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinished = fn
}

func (p *mockPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
}

// finish completes the current held playback.
func (p *mockPlayer) finish() {
	p.mu.Lock()
	p.playing = false
	fn := p.onFinished
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *mockPlayer) playedFrames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := make([]string, 0, len(p.played))
	for _, resource := range p.played {
		frames = append(frames, string(resource.Frames[0]))
	}
	return frames
}

func (p *mockPlayer) playedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func (p *mockPlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type mockPlayerFactory struct {
	hold    bool
	playErr error

	mu      sync.Mutex
	players []*mockPlayer
}

func (f *mockPlayerFactory) NewPlayer(_ snowflake.ID) ports.AudioPlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	player := &mockPlayer{hold: f.hold, playErr: f.playErr}
	f.players = append(f.players, player)
	return player
}

func (f *mockPlayerFactory) lastPlayer() *mockPlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.players) == 0 {
		return nil
	}
	return f.players[len(f.players)-1]
}

// playedTotal sums playback counts across every player the factory created.
func (f *mockPlayerFactory) playedTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, player := range f.players {
		total += player.playedCount()
	}
	return total
}

type mockSettings struct {
	mu         sync.Mutex
	persistent map[snowflake.ID]bool
	err        error
}

func newMockSettings() *mockSettings {
	return &mockSettings{persistent: make(map[snowflake.ID]bool)}
}

func (m *mockSettings) Persistent(_ context.Context, guildID snowflake.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.persistent[guildID], nil
}

func (m *mockSettings) SetPersistent(_ context.Context, guildID snowflake.ID, persistent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.persistent[guildID] = persistent
	return nil
}

type controlCall struct {
	op        string
	guildID   snowflake.ID
	channelID snowflake.ID
}

type mockConnectionControl struct {
	mu       sync.Mutex
	calls    []controlCall
	joinErr  error
	moveErr  error
	leaveErr error
}

func (m *mockConnectionControl) Join(_ context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, controlCall{op: "join", guildID: guildID, channelID: channelID})
	return m.joinErr
}

func (m *mockConnectionControl) Move(_ context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, controlCall{op: "move", guildID: guildID, channelID: channelID})
	return m.moveErr
}

func (m *mockConnectionControl) Leave(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, controlCall{op: "leave", guildID: guildID})
	return m.leaveErr
}

func (m *mockConnectionControl) callLog() []controlCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]controlCall(nil), m.calls...)
}
