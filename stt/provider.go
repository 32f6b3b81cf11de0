// Package stt defines the live speech-to-text provider contract and the
// restartable ingestion bridge that keeps recognition running for the whole
// length of a phone call.
package stt

import (
	"context"
	"time"
)

// Provider opens live recognition sessions against one vendor.
type Provider interface {
	// Open starts a live recognition session. The session is ready to accept
	// audio when Open returns.
	Open(ctx context.Context, cfg SessionConfig) (Session, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}

// Session is one live recognition stream. Feed pushes caller audio in;
// Events delivers transcription results out. The events channel is closed
// when the session ends, after a final error event if it ended abnormally.
type Session interface {
	Feed(frame []byte) error
	Events() <-chan Event
	Close() error
}

// Capabilities describes what a live recognition provider supports.
type Capabilities struct {
	Provider           string        // Provider identifier (e.g., "deepgram")
	Models             []string      // Available models
	Languages          []string      // Supported language codes
	Encodings          []string      // Accepted audio encodings (e.g., "mulaw")
	MaxSessionDuration time.Duration // Hard per-session limit (0 = unlimited)
}

// SessionConfig configures one live recognition session.
type SessionConfig struct {
	Model          string         // Model identifier (e.g., "nova-2-phonecall")
	Language       string         // Language code (e.g., "en-US")
	Encoding       string         // Audio encoding (e.g., "mulaw")
	SampleRate     int            // Audio sample rate in Hz
	Channels       int            // Audio channel count
	InterimResults bool           // Deliver partial hypotheses as they form
	Keywords       []string       // Recognition hint phrases
	Custom         map[string]any // Provider-specific options
}

// EventType identifies a live recognition event.
type EventType string

const (
	// EventPartial is an interim hypothesis that may still change.
	EventPartial EventType = "partial"

	// EventFinal is a finalized transcript segment.
	EventFinal EventType = "final"

	// EventSpeechBegin marks the provider detecting the start of speech.
	EventSpeechBegin EventType = "speech_begin"

	// EventSpeechEnd marks the provider detecting the end of speech.
	EventSpeechEnd EventType = "speech_end"

	// EventError reports a session failure. The events channel closes after
	// this event.
	EventError EventType = "error"
)

// Event is one live recognition result.
type Event struct {
	Type       EventType
	Text       string
	Confidence float64
	Err        error
	Timestamp  time.Time
}
