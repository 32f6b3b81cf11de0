package vad

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/cadencevoice/callpipe/audio"
)

// loudPCM returns n bytes of 16-bit PCM at a level well above the noise gate.
func loudPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(8000)))
	}
	return pcm
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FrameDuration != 30*time.Millisecond {
		t.Errorf("expected 30ms frames, got %v", cfg.FrameDuration)
	}
	if cfg.VoiceFrames != 3 {
		t.Errorf("expected 3 consecutive voice frames, got %d", cfg.VoiceFrames)
	}
}

func TestDetector_RequiresThreeConsecutiveFrames(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()

	if d.ProcessPCM(loudPCM(frame)) {
		t.Fatal("voice asserted after one frame")
	}
	if d.ProcessPCM(loudPCM(frame)) {
		t.Fatal("voice asserted after two frames")
	}
	if !d.ProcessPCM(loudPCM(frame)) {
		t.Fatal("voice not asserted after three consecutive frames")
	}
}

func TestDetector_NegativeFrameResetsCounter(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()

	d.ProcessPCM(loudPCM(frame))
	d.ProcessPCM(loudPCM(frame))
	d.ProcessPCM(make([]byte, frame)) // silence resets the run
	if d.ProcessPCM(loudPCM(frame)) {
		t.Fatal("voice asserted without three consecutive frames after reset")
	}
}

func TestDetector_EnergyGateSuppressesLineNoise(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()

	// Just below the 1200-sample gate.
	quiet := make([]byte, frame)
	for i := 0; i+1 < frame; i += 2 {
		binary.LittleEndian.PutUint16(quiet[i:], uint16(int16(900)))
	}
	for i := 0; i < 5; i++ {
		if d.ProcessPCM(quiet) {
			t.Fatal("voice asserted on sub-gate energy")
		}
	}
}

func TestDetector_PartialFramesPersist(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()
	loud := loudPCM(frame * 3)

	// Feed in uneven chunks; total equals three frames.
	half := frame / 2
	d.ProcessPCM(loud[:half])
	d.ProcessPCM(loud[half : half+frame])
	voiced := d.ProcessPCM(loud[half+frame:])
	if !voiced {
		t.Fatal("voice not asserted when frames arrive split across payloads")
	}
}

func TestDetector_AssertionHoldsAcrossPartialFramePayloads(t *testing.T) {
	d := New(Config{})

	// Carrier media arrives as 160-byte ulaw payloads (320 PCM bytes), so
	// every third call completes no 480-byte frame. Once voice is asserted,
	// those short calls must keep reporting it, not flap to silence.
	payload := audio.EncodeULaw(loudPCM(320))

	asserted := false
	for i := 0; i < 60; i++ { // 1.2s of continuous loud audio
		voiced := d.ProcessPayload(payload)
		if voiced {
			asserted = true
		} else if asserted {
			t.Fatalf("voice deasserted on payload %d during continuous speech", i)
		}
	}
	if !asserted {
		t.Fatal("voice never asserted over 1.2s of loud audio")
	}
}

func TestDetector_ProcessPayloadDecodesULaw(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()

	ulaw := audio.EncodeULaw(loudPCM(frame * 3))
	if !d.ProcessPayload(ulaw) {
		t.Fatal("voice not asserted on loud ulaw payload")
	}
}

func TestDetector_Reset(t *testing.T) {
	d := New(Config{})
	frame := d.FrameBytes()

	d.ProcessPCM(loudPCM(frame * 2))
	d.Reset()
	if d.ProcessPCM(loudPCM(frame)) {
		t.Fatal("consecutive count survived Reset")
	}
	if d.LastEnergy() == 0 {
		// LastEnergy reflects the post-reset frame just processed.
		t.Fatal("expected non-zero energy after processing a loud frame")
	}
}
