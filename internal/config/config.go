// Package config loads the full configuration surface from environment
// variables (optionally seeded by a .env file) and an optional YAML
// file, covering provider keys plus the rest of the knob set this
// firmware core exposes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration surface for one run of
// the voice core.
type Config struct {
	SampleRateHz int
	Channels     int
	FrameSizeMs  int
	CaptureMs    int

	FeedChunksize int

	MinUtteranceSamples int
	MaxUtteranceSamples int

	HangoverFramesRise int
	HangoverFramesFall int

	CooldownMs     int
	WakeCooldownMs int

	EnableVAD    bool
	VADThreshold float64

	TTSVoice string

	UseRealtimeStreaming bool
	SkipWakeWord         bool
	EnableWakenetLocal   bool
	WakenetModel         string
	WakenetThreshold     float64

	MinWordsToInterrupt int

	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration

	WakeWord string

	STTProvider string
	LLMProvider string

	GroqAPIKey       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepgramAPIKey   string
	AssemblyAIAPIKey string
	LokutorAPIKey    string
}

// Default returns the baseline knob values (sample rate 16000, 2s
// batch capture, 5s max utterance, 2/8 frame hysteresis, 2000ms wake
// cooldown, etc.) before any environment or file overrides are applied.
func Default() Config {
	sampleRate := 16000
	return Config{
		SampleRateHz:         sampleRate,
		Channels:             1,
		FrameSizeMs:          80,
		CaptureMs:            2000,
		FeedChunksize:        sampleRate * 80 / 1000,
		MinUtteranceSamples:  sampleRate / 2, // 0.5s floor by default
		MaxUtteranceSamples:  sampleRate * 5,
		HangoverFramesRise:   2,
		HangoverFramesFall:   8,
		CooldownMs:           0,
		WakeCooldownMs:       2000,
		EnableVAD:            true,
		VADThreshold:         0.02,
		TTSVoice:             "F1",
		UseRealtimeStreaming: false,
		SkipWakeWord:         false,
		EnableWakenetLocal:   true,
		WakenetModel:         "",
		WakenetThreshold:     0.5,
		MinWordsToInterrupt:  1,
		STTTimeout:           10 * time.Second,
		LLMTimeout:           15 * time.Second,
		TTSTimeout:           15 * time.Second,
		WakeWord:             "naptick",
		STTProvider:          "groq",
		LLMProvider:          "groq",
	}
}

// Load reads a .env file (if present; errors are non-fatal), then
// layers environment variables and an optional YAML config file on
// top of Default() via viper.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("NAPTICK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if yamlPath != "" {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
	}

	bindInt(v, "sample_rate_hz", &cfg.SampleRateHz)
	bindInt(v, "channels", &cfg.Channels)
	bindInt(v, "frame_size_ms", &cfg.FrameSizeMs)
	bindInt(v, "capture_ms", &cfg.CaptureMs)
	bindInt(v, "cooldown_ms", &cfg.CooldownMs)
	bindInt(v, "wake_cooldown_ms", &cfg.WakeCooldownMs)
	bindBool(v, "enable_vad", &cfg.EnableVAD)
	bindFloat(v, "vad_threshold", &cfg.VADThreshold)
	bindString(v, "tts_voice", &cfg.TTSVoice)
	bindBool(v, "use_realtime_streaming", &cfg.UseRealtimeStreaming)
	bindBool(v, "skip_wake_word", &cfg.SkipWakeWord)
	bindBool(v, "enable_wakenet_local", &cfg.EnableWakenetLocal)
	bindString(v, "wakenet_model", &cfg.WakenetModel)
	bindFloat(v, "wakenet_threshold", &cfg.WakenetThreshold)
	bindString(v, "wake_word", &cfg.WakeWord)
	bindString(v, "stt_provider", &cfg.STTProvider)
	bindString(v, "llm_provider", &cfg.LLMProvider)

	cfg.GroqAPIKey = v.GetString("groq_api_key")
	cfg.OpenAIAPIKey = v.GetString("openai_api_key")
	cfg.AnthropicAPIKey = v.GetString("anthropic_api_key")
	cfg.GoogleAPIKey = v.GetString("google_api_key")
	cfg.DeepgramAPIKey = v.GetString("deepgram_api_key")
	cfg.AssemblyAIAPIKey = v.GetString("assemblyai_api_key")
	cfg.LokutorAPIKey = v.GetString("lokutor_api_key")

	// Derived knobs, recomputed if sample rate/frame size changed.
	cfg.FeedChunksize = cfg.SampleRateHz * cfg.FrameSizeMs / 1000
	if cfg.MaxUtteranceSamples < cfg.MinUtteranceSamples {
		return Config{}, fmt.Errorf("config: max_utterance_samples < min_utterance_samples")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that are fatal at init: an invalid sample
// rate or a chunk size that does not divide the frame evenly refuses
// to start the pipeline.
func (c Config) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("config: sample_rate_hz must be > 0")
	}
	if c.Channels <= 0 {
		return fmt.Errorf("config: channels must be > 0")
	}
	if c.FeedChunksize <= 0 {
		return fmt.Errorf("config: frame_size_ms too small for sample_rate_hz")
	}
	if frame := c.SampleRateHz * c.FrameSizeMs / 1000; frame%c.FeedChunksize != 0 {
		return fmt.Errorf("config: feed chunk size does not divide the frame evenly")
	}
	if c.WakeWord == "" {
		return fmt.Errorf("config: wake_word must not be empty")
	}
	return nil
}

func bindInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func bindBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func bindFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func bindString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}
