// Package tts provides text-to-speech provider interfaces and the output
// dispatcher that paces synthesized audio onto a live call.
package tts

import (
	"context"
	"time"
)

// Provider is the interface for text-to-speech providers.
type Provider interface {
	// Synthesize converts text to a stream of audio chunks. Chunks arrive in
	// the stream's declared format as the provider generates them.
	Synthesize(ctx context.Context, text string, opts Options) (*AudioStream, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}

// Capabilities describes the features supported by a TTS provider.
type Capabilities struct {
	Provider  string        // Provider identifier (e.g., "elevenlabs")
	Voices    []Voice       // Available voices
	Languages []string      // Supported language codes
	Formats   []AudioFormat // Output formats the provider can emit
}

// Options configures a synthesis request.
type Options struct {
	Voice  string         // Voice identifier
	Model  string         // Model identifier (for providers with multiple models)
	Speed  float64        // Speech speed multiplier (1.0 = normal, 0 uses default)
	Format AudioFormat    // Requested output format
	Custom map[string]any // Provider-specific options
}

// Voice represents an available voice.
type Voice struct {
	ID          string // Unique voice identifier
	Name        string // Display name
	Language    string // Primary language code (e.g., "en-US")
	Gender      string // "male", "female", or "neutral"
	Description string // Voice description
}

// AudioFormat names an encoding plus sample rate.
type AudioFormat string

const (
	// FormatULaw8000 is 8kHz G.711 mu-law, the telephone wire format.
	FormatULaw8000 AudioFormat = "mulaw_8000"

	// FormatPCM16000 is 16kHz 16-bit little-endian PCM.
	FormatPCM16000 AudioFormat = "pcm_16000"

	// FormatPCM8000 is 8kHz 16-bit little-endian PCM.
	FormatPCM8000 AudioFormat = "pcm_8000"
)

// AudioStream represents streaming audio output.
type AudioStream struct {
	events chan AudioEvent
	err    error
	done   chan struct{}
	meta   *AudioMeta
}

// AudioMeta contains metadata about the audio stream.
type AudioMeta struct {
	Format   AudioFormat
	Voice    string
	Model    string
	Provider string
}

// NewAudioStream creates a new audio stream.
func NewAudioStream(meta *AudioMeta) *AudioStream {
	return &AudioStream{
		events: make(chan AudioEvent, 100),
		done:   make(chan struct{}),
		meta:   meta,
	}
}

// Events returns the channel of audio events.
func (s *AudioStream) Events() <-chan AudioEvent {
	return s.events
}

// Send sends an event to the stream. Returns false if stream is closed.
func (s *AudioStream) Send(event AudioEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

// Close closes the stream.
func (s *AudioStream) Close() error {
	select {
	case <-s.done:
		// Already closed
	default:
		close(s.done)
		close(s.events)
	}
	return nil
}

// Err returns any error that occurred during streaming.
func (s *AudioStream) Err() error {
	return s.err
}

// SetError sets the stream error.
func (s *AudioStream) SetError(err error) {
	s.err = err
}

// Meta returns metadata about the audio stream.
func (s *AudioStream) Meta() *AudioMeta {
	return s.meta
}

// AudioEvent represents a streaming audio event.
type AudioEvent struct {
	Type      AudioEventType // Event type
	Data      []byte         // Audio chunk (for AudioEventDelta)
	Error     error          // Error (for AudioEventError)
	Timestamp time.Time      // When this event was generated
}

// AudioEventType identifies the type of audio event.
type AudioEventType string

const (
	// AudioEventDelta indicates an audio chunk.
	AudioEventDelta AudioEventType = "delta"

	// AudioEventFinish indicates the stream has finished.
	AudioEventFinish AudioEventType = "finish"

	// AudioEventError indicates an error during synthesis.
	AudioEventError AudioEventType = "error"
)

// Option is a functional option for configuring TTS requests.
type Option func(*Options)

// Apply applies all options to the Options struct.
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithVoice sets the voice to use for synthesis.
func WithVoice(voice string) Option {
	return func(o *Options) {
		o.Voice = voice
	}
}

// WithModel sets the TTS model to use.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithSpeed sets the speech speed multiplier.
func WithSpeed(speed float64) Option {
	return func(o *Options) {
		o.Speed = speed
	}
}

// WithFormat sets the output audio format.
func WithFormat(format AudioFormat) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithCustomOption sets a provider-specific option.
func WithCustomOption(key string, value any) Option {
	return func(o *Options) {
		if o.Custom == nil {
			o.Custom = make(map[string]any)
		}
		o.Custom[key] = value
	}
}
