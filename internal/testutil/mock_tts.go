package testutil

import (
	"context"
	"sync"

	"github.com/cadencevoice/callpipe/tts"
)

// MockTTSProvider synthesizes canned audio for tests.
type MockTTSProvider struct {
	mu    sync.Mutex
	calls []string

	// Audio is the payload emitted per synthesis. Defaults to 160
	// bytes of mu-law silence when empty.
	Audio []byte
	// Format reported on the stream. Defaults to FormatULaw8000.
	Format tts.AudioFormat
	// Err, when set, fails Synthesize immediately.
	Err error
}

// NewMockTTS creates a provider emitting one frame of mu-law silence.
func NewMockTTS() *MockTTSProvider {
	return &MockTTSProvider{}
}

// Synthesize implements tts.Provider.
func (p *MockTTSProvider) Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.AudioStream, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	audio := p.Audio
	if len(audio) == 0 {
		audio = make([]byte, 160)
		for i := range audio {
			audio[i] = 0xFF
		}
	}
	format := p.Format
	if format == "" {
		format = tts.FormatULaw8000
	}

	stream := tts.NewAudioStream(&tts.AudioMeta{
		Format:   format,
		Voice:    opts.Voice,
		Model:    opts.Model,
		Provider: "mock",
	})
	go func() {
		defer stream.Close()
		stream.Send(tts.AudioEvent{Type: tts.AudioEventDelta, Data: audio})
		stream.Send(tts.AudioEvent{Type: tts.AudioEventFinish})
	}()
	return stream, nil
}

// Capabilities implements tts.Provider.
func (p *MockTTSProvider) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Provider: "mock",
		Voices:   []tts.Voice{{ID: "default", Name: "Default"}},
		Formats:  []tts.AudioFormat{tts.FormatULaw8000},
	}
}

// Calls returns every text synthesized so far.
func (p *MockTTSProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
