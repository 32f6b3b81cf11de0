// Package vad implements per-call voice activity detection over fixed-duration
// audio frames. One Detector instance serves exactly one call; partial frame
// bytes persist across payloads so arbitrary transport chunk sizes are fine.
package vad

import (
	"sync"
	"time"

	"github.com/cadencevoice/callpipe/audio"
)

// Classifier is the underlying binary frame classifier. The default is an
// energy classifier; it can be swapped for a model-backed implementation.
type Classifier interface {
	// IsSpeech reports whether a single complete PCM frame contains speech.
	IsSpeech(frame []byte, sampleRate int) bool
}

// Config controls detector behavior.
type Config struct {
	// Format is the PCM format of decoded frames (default: telephone 8 kHz).
	Format audio.Format

	// FrameDuration is the atomic classification unit (default: 30ms).
	FrameDuration time.Duration

	// MinEnergy gates the classifier: frames below this normalized RMS are
	// treated as line noise and never reach the classifier (default: ~0.0366,
	// i.e. 1200 on the 16-bit sample scale).
	MinEnergy float64

	// VoiceFrames is the number of consecutive positive frames required
	// before voice is asserted (default: 3).
	VoiceFrames int
}

// DefaultConfig returns the tuning used for telephone audio.
func DefaultConfig() Config {
	return Config{
		Format:        audio.TelephoneFormat(),
		FrameDuration: 30 * time.Millisecond,
		MinEnergy:     1200.0 / 32768.0,
		VoiceFrames:   3,
	}
}

// Detector buffers decoded PCM and classifies complete frames, requiring a
// run of consecutive positive frames before asserting voice.
type Detector struct {
	cfg        Config
	classifier Classifier
	frameBytes int

	mu          sync.Mutex
	pending     []byte
	consecutive int
	lastEnergy  float64
}

// New creates a detector with the given configuration, applying defaults for
// zero fields.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Format.SampleRate == 0 {
		cfg.Format = def.Format
	}
	if cfg.FrameDuration == 0 {
		cfg.FrameDuration = def.FrameDuration
	}
	if cfg.MinEnergy == 0 {
		cfg.MinEnergy = def.MinEnergy
	}
	if cfg.VoiceFrames == 0 {
		cfg.VoiceFrames = def.VoiceFrames
	}

	return &Detector{
		cfg:        cfg,
		classifier: energyClassifier{threshold: cfg.MinEnergy},
		frameBytes: cfg.Format.FrameBytes(cfg.FrameDuration),
	}
}

// SetClassifier replaces the underlying frame classifier.
func (d *Detector) SetClassifier(c Classifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classifier = c
}

// ProcessPayload decodes a μ-law transport payload, classifies any complete
// frames it yields, and reports whether voice is currently asserted. Leftover
// bytes short of a frame are kept for the next payload.
func (d *Detector) ProcessPayload(ulaw []byte) bool {
	return d.ProcessPCM(audio.DecodeULaw(ulaw))
}

// ProcessPCM is ProcessPayload for already-decoded linear PCM.
func (d *Detector) ProcessPCM(pcm []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, pcm...)

	// Start from the standing assertion: a payload too short to complete a
	// frame must not read as silence while the consecutive-frame run holds.
	voiced := d.consecutive >= d.cfg.VoiceFrames
	for len(d.pending) >= d.frameBytes {
		frame := d.pending[:d.frameBytes]
		d.pending = d.pending[d.frameBytes:]

		energy := audio.RMSEnergy(frame)
		d.lastEnergy = energy

		isVoice := energy >= d.cfg.MinEnergy && d.classifier.IsSpeech(frame, d.cfg.Format.SampleRate)
		if isVoice {
			d.consecutive++
		} else {
			d.consecutive = 0
		}
		voiced = d.consecutive >= d.cfg.VoiceFrames
	}
	return voiced
}

// LastEnergy returns the normalized RMS of the most recently classified frame.
func (d *Detector) LastEnergy() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastEnergy
}

// Reset clears buffered bytes and the consecutive-frame counter.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = d.pending[:0]
	d.consecutive = 0
	d.lastEnergy = 0
}

// FrameBytes returns the byte size of one classification frame.
func (d *Detector) FrameBytes() int {
	return d.frameBytes
}

// energyClassifier is the default frame classifier: plain RMS thresholding.
// The MinEnergy gate already filters line noise, so the classifier only has
// to confirm the frame keeps that level across its full duration.
type energyClassifier struct {
	threshold float64
}

func (c energyClassifier) IsSpeech(frame []byte, sampleRate int) bool {
	return audio.RMSEnergy(frame) >= c.threshold
}
