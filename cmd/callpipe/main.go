// Command callpipe runs the voice conversation server: Twilio webhooks, the
// media stream endpoint, and the post-call pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	callpipe "github.com/cadencevoice/callpipe"
	"github.com/cadencevoice/callpipe/gateway"
	"github.com/cadencevoice/callpipe/internal/config"
	"github.com/cadencevoice/callpipe/obs"
	"github.com/cadencevoice/callpipe/oracle"
	"github.com/cadencevoice/callpipe/postcall"
	"github.com/cadencevoice/callpipe/session"
	"github.com/cadencevoice/callpipe/stt"
	"github.com/cadencevoice/callpipe/tts"

	_ "github.com/cadencevoice/callpipe/stt/deepgram"
	_ "github.com/cadencevoice/callpipe/tts/cartesia"
	_ "github.com/cadencevoice/callpipe/tts/elevenlabs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "callpipe:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObs, err := obs.Init(ctx, obs.Options{
		ServiceName: "callpipe",
		Environment: cfg.Environment,
		Exporter:    obs.Exporter(cfg.OTELExporter),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownObs(context.Background())

	sttProvider, err := callpipe.NewSTTProvider(cfg.STTProvider, func(c *callpipe.STTProviderConfig) {
		if cfg.DeepgramAPIKey != "" {
			c.APIKey = cfg.DeepgramAPIKey
		}
	})
	if err != nil {
		return fmt.Errorf("build STT provider: %w", err)
	}

	ttsProvider, err := callpipe.NewTTSProvider(cfg.TTSProvider, func(c *callpipe.TTSProviderConfig) {
		switch cfg.TTSProvider {
		case "elevenlabs":
			if cfg.ElevenLabsAPIKey != "" {
				c.APIKey = cfg.ElevenLabsAPIKey
			}
		case "cartesia":
			if cfg.CartesiaAPIKey != "" {
				c.APIKey = cfg.CartesiaAPIKey
			}
		}
	})
	if err != nil {
		return fmt.Errorf("build TTS provider: %w", err)
	}

	var oracleOpts []oracle.OpenAIOption
	if cfg.OracleModel != "" {
		oracleOpts = append(oracleOpts, oracle.WithModel(cfg.OracleModel))
	}
	oracleOpts = append(oracleOpts, oracle.WithLogger(log))
	brain := oracle.NewOpenAI(cfg.OpenAIAPIKey, oracleOpts...)

	registry := session.NewRegistry()
	runner := postcall.NewRunner(registry, nil, log)

	srv := gateway.New(gateway.Config{
		Registry: registry,
		STT:      sttProvider,
		STTSession: stt.SessionConfig{
			Model:      cfg.STTModel,
			Language:   cfg.STTLanguage,
			Encoding:   "mulaw",
			SampleRate: 8000,
			Channels:   1,
		},
		Dispatcher: tts.NewDispatcher(ttsProvider, tts.Options{
			Voice: cfg.TTSVoice,
			Model: cfg.TTSModel,
		}, log),
		Oracle:          brain,
		Postcall:        runner,
		StreamURL:       cfg.StreamURL(),
		TwilioAuthToken: cfg.TwilioAuthToken,
		PublicHost:      cfg.PublicHost,
		Logger:          log,
	})

	log.Info("starting call server",
		"addr", cfg.ListenAddr,
		"stt", cfg.STTProvider,
		"tts", cfg.TTSProvider,
		"stream_url", cfg.StreamURL())

	if err := srv.Run(ctx, cfg.ListenAddr, cfg.ShutdownGrace); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
