package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("PUBLIC_HOST", "calls.example.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.STTProvider != "deepgram" || cfg.TTSProvider != "elevenlabs" {
		t.Errorf("providers = %q/%q", cfg.STTProvider, cfg.TTSProvider)
	}
	if cfg.ShutdownGrace != 10*time.Second {
		t.Errorf("ShutdownGrace = %v", cfg.ShutdownGrace)
	}
	if got := cfg.StreamURL(); got != "wss://calls.example.com/media" {
		t.Errorf("StreamURL = %q", got)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("PUBLIC_HOST", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"PUBLIC_HOST", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestProviderKeyRequirementFollowsSelection(t *testing.T) {
	setRequired(t)
	t.Setenv("TTS_PROVIDER", "cartesia")
	t.Setenv("ELEVENLABS_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing cartesia key")
	}
	t.Setenv("CARTESIA_API_KEY", "ca-test")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with cartesia key: %v", err)
	}
}

func TestEnvDurationSeconds(t *testing.T) {
	setRequired(t)
	t.Setenv("SHUTDOWN_GRACE", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShutdownGrace != 30*time.Second {
		t.Errorf("ShutdownGrace = %v", cfg.ShutdownGrace)
	}
}
