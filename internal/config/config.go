package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the application.
type Config struct {
	Realtime RealtimeConfig
	Data     DataConfig
	Audio    AudioConfig
	Session  SessionConfig
	Log      LogConfig
}

// RealtimeConfig configures the Completion Service realtime endpoints.
type RealtimeConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Voice   string
}

// DataConfig configures the external data service used for call history.
type DataConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

type AudioConfig struct {
	CaptureCommand  string
	PlaybackCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	// GatherTimeout bounds the ICE gathering wait before the offer is sent.
	GatherTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Realtime: RealtimeConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			APIBase: envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:   envOrDefault("CROSSTALK_MODEL", "gpt-realtime"),
			Voice:   envOrDefault("CROSSTALK_VOICE", "marin"),
		},
		Data: DataConfig{
			BaseURL:   strings.TrimSpace(os.Getenv("CROSSTALK_DATA_URL")),
			AuthToken: strings.TrimSpace(os.Getenv("CROSSTALK_DATA_TOKEN")),
			Timeout:   time.Duration(envOrDefaultInt("CROSSTALK_DATA_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			CaptureCommand:  envOrDefault("CROSSTALK_FFMPEG_COMMAND", "ffmpeg"),
			PlaybackCommand: envOrDefault("CROSSTALK_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("CROSSTALK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("CROSSTALK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("CROSSTALK_SAMPLE_RATE", 48000),
			Channels:        envOrDefaultInt("CROSSTALK_CHANNELS", 1),
		},
		Session: SessionConfig{
			GatherTimeout: time.Duration(envOrDefaultInt("CROSSTALK_ICE_GATHER_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Log: LogConfig{
			Level:  envOrDefault("CROSSTALK_LOG_LEVEL", "info"),
			Format: envOrDefault("CROSSTALK_LOG_FORMAT", "console"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.GatherTimeout <= 0 {
		cfg.Session.GatherTimeout = 5 * time.Second
	}
	if cfg.Data.Timeout <= 0 {
		cfg.Data.Timeout = 10 * time.Second
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
