// Package config loads pipeline settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the call server.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string
	// PublicHost is the externally reachable host for the media
	// stream WebSocket URL in TwiML, without scheme.
	PublicHost string

	// STTProvider names the registered recognition provider.
	STTProvider    string
	DeepgramAPIKey string
	STTModel       string
	STTLanguage    string

	// TTSProvider names the registered synthesis provider.
	TTSProvider      string
	ElevenLabsAPIKey string
	CartesiaAPIKey   string
	TTSVoice         string
	TTSModel         string

	OpenAIAPIKey string
	OracleModel  string

	// TwilioAuthToken validates status callback signatures when set.
	TwilioAuthToken string

	LogLevel  string
	LogFormat string

	// OTELExporter selects the telemetry exporter: none or stdout.
	OTELExporter string
	Environment  string

	// ShutdownGrace bounds graceful HTTP shutdown.
	ShutdownGrace time.Duration
}

// Load reads .env if present, then the environment. Missing required keys
// produce an error listing all of them.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:       env("LISTEN_ADDR", ":8080"),
		PublicHost:       os.Getenv("PUBLIC_HOST"),
		STTProvider:      env("STT_PROVIDER", "deepgram"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		STTModel:         env("STT_MODEL", "nova-2-phonecall"),
		STTLanguage:      env("STT_LANGUAGE", "en-US"),
		TTSProvider:      env("TTS_PROVIDER", "elevenlabs"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		CartesiaAPIKey:   os.Getenv("CARTESIA_API_KEY"),
		TTSVoice:         os.Getenv("TTS_VOICE"),
		TTSModel:         os.Getenv("TTS_MODEL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OracleModel:      os.Getenv("ORACLE_MODEL"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		LogLevel:         env("LOG_LEVEL", "info"),
		LogFormat:        env("LOG_FORMAT", "text"),
		OTELExporter:     env("OTEL_EXPORTER", "none"),
		Environment:      env("ENVIRONMENT", "development"),
		ShutdownGrace:    envDuration("SHUTDOWN_GRACE", 10*time.Second),
	}

	var missing []string
	if cfg.PublicHost == "" {
		missing = append(missing, "PUBLIC_HOST")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	switch cfg.STTProvider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			missing = append(missing, "DEEPGRAM_API_KEY")
		}
	}
	switch cfg.TTSProvider {
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			missing = append(missing, "ELEVENLABS_API_KEY")
		}
	case "cartesia":
		if cfg.CartesiaAPIKey == "" {
			missing = append(missing, "CARTESIA_API_KEY")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// StreamURL builds the wss URL Twilio connects its media stream to.
func (c Config) StreamURL() string {
	return "wss://" + c.PublicHost + "/media"
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
