package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_API_BASE", "CROSSTALK_MODEL", "CROSSTALK_VOICE",
		"CROSSTALK_DATA_URL", "CROSSTALK_DATA_TOKEN", "CROSSTALK_DATA_TIMEOUT_MS",
		"CROSSTALK_SAMPLE_RATE", "CROSSTALK_CHANNELS", "CROSSTALK_ICE_GATHER_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Realtime.APIBase != "https://api.openai.com/v1" {
		t.Fatalf("unexpected api base: %q", cfg.Realtime.APIBase)
	}
	if cfg.Realtime.Model != "gpt-realtime" {
		t.Fatalf("unexpected model: %q", cfg.Realtime.Model)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Session.GatherTimeout != 5*time.Second {
		t.Fatalf("unexpected gather timeout: %v", cfg.Session.GatherTimeout)
	}
	if cfg.Data.Timeout != 10*time.Second {
		t.Fatalf("unexpected data timeout: %v", cfg.Data.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CROSSTALK_MODEL", "gpt-realtime-mini")
	t.Setenv("CROSSTALK_VOICE", "cedar")
	t.Setenv("CROSSTALK_DATA_URL", "https://data.example.com")
	t.Setenv("CROSSTALK_ICE_GATHER_TIMEOUT_MS", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Realtime.APIKey != "sk-test" {
		t.Fatalf("unexpected api key: %q", cfg.Realtime.APIKey)
	}
	if cfg.Realtime.Model != "gpt-realtime-mini" || cfg.Realtime.Voice != "cedar" {
		t.Fatalf("unexpected realtime config: %+v", cfg.Realtime)
	}
	if cfg.Data.BaseURL != "https://data.example.com" {
		t.Fatalf("unexpected data url: %q", cfg.Data.BaseURL)
	}
	if cfg.Session.GatherTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected gather timeout: %v", cfg.Session.GatherTimeout)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("CROSSTALK_SAMPLE_RATE", "not-a-number")
	t.Setenv("CROSSTALK_ICE_GATHER_TIMEOUT_MS", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("unexpected sample rate: %d", cfg.Audio.SampleRate)
	}
	if cfg.Session.GatherTimeout != 5*time.Second {
		t.Fatalf("unexpected gather timeout: %v", cfg.Session.GatherTimeout)
	}
}
