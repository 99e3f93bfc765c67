package narrator

import "time"

// Config holds the narrator module configuration.
type Config struct {
	// OwnerID is the only user the bot follows and narrates for.
	OwnerID string `env:"OWNER_ID,notEmpty"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY,notEmpty"`
	TTSModel     string `env:"OPENAI_TTS_MODEL" envDefault:"tts-1"`
	TTSVoice     string `env:"OPENAI_TTS_VOICE" envDefault:"onyx"`

	// SoundsDir is scanned for *.dca sound clips at startup. Empty disables
	// sound effects; /say keeps working.
	SoundsDir string `env:"SOUNDS_DIR"`

	ReadyTimeout    time.Duration `env:"READY_TIMEOUT" envDefault:"10s"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	BackoffBase     time.Duration `env:"BACKOFF_BASE" envDefault:"500ms"`
	BackoffMax      time.Duration `env:"BACKOFF_MAX" envDefault:"10s"`
	DisconnectGrace time.Duration `env:"DISCONNECT_GRACE" envDefault:"5s"`

	MinRequestInterval   time.Duration `env:"MIN_REQUEST_INTERVAL" envDefault:"1s"`
	MaxTextChars         int           `env:"MAX_TEXT_CHARS" envDefault:"280"`
	SynthesisTimeout     time.Duration `env:"SYNTHESIS_TIMEOUT" envDefault:"15s"`
	PlaybackStartTimeout time.Duration `env:"PLAYBACK_START_TIMEOUT" envDefault:"5s"`

	DebounceDelay time.Duration `env:"DEBOUNCE_DELAY" envDefault:"500ms"`
}
