package live

import (
	"sync"
	"testing"
	"time"

	"github.com/cadencevoice/callpipe/audio"
	"github.com/cadencevoice/callpipe/session"
	"github.com/cadencevoice/callpipe/vad"
)

type fakeControl struct {
	mu     sync.Mutex
	clears int
}

func (c *fakeControl) SendClear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	return nil
}

func (c *fakeControl) clearCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

// voicedPayload returns mu-law audio loud enough and long enough to trip the
// detector's three-frame debounce in one call.
func voicedPayload(frames int) []byte {
	pcm := make([]byte, 480*frames)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0x00
		pcm[i+1] = 0x20 // 8192, well above the energy gate
	}
	return audio.EncodeULaw(pcm)
}

func silentPayload(frames int) []byte {
	pcm := make([]byte, 480*frames)
	return audio.EncodeULaw(pcm)
}

func newTestMonitor(st *session.State, out ControlSender, onSilence func()) *Monitor {
	m := NewMonitor(st, vad.New(vad.DefaultConfig()), out, onSilence, nil)
	m.silenceWait = 50 * time.Millisecond
	return m
}

func TestInterruptBranchSetsFlagAndClearsOnce(t *testing.T) {
	st := session.NewState("CA1")
	st.SetAISpeaking(true)
	out := &fakeControl{}
	m := newTestMonitor(st, out, nil)

	m.OnFrame(voicedPayload(3))
	if !st.InterruptAI() {
		t.Fatal("interrupt not registered")
	}
	if out.clearCount() != 1 {
		t.Fatalf("clears = %d, want 1", out.clearCount())
	}

	// Continued voice during the same utterance: no second clear.
	m.OnFrame(voicedPayload(3))
	m.OnFrame(voicedPayload(3))
	if out.clearCount() != 1 {
		t.Errorf("clears = %d after repeated voice, want 1", out.clearCount())
	}
}

func TestInterruptCooldownBlocksRapidReRegistration(t *testing.T) {
	st := session.NewState("CA1")
	st.SetAISpeaking(true)
	out := &fakeControl{}
	m := newTestMonitor(st, out, nil)

	m.OnFrame(voicedPayload(3))
	if !st.InterruptAI() {
		t.Fatal("first interrupt not registered")
	}

	// Next utterance begins: flags reset, but the cooldown has not elapsed.
	st.SetInterruptAI(false)
	st.SetClearCommandSent(false)
	m.OnFrame(voicedPayload(3))
	if st.InterruptAI() {
		t.Error("interrupt registered inside the cooldown window")
	}
	if out.clearCount() != 1 {
		t.Errorf("clears = %d, want 1", out.clearCount())
	}

	// After the cooldown passes, a new barge-in registers.
	m.mu.Lock()
	m.lastInterrupt = time.Now().Add(-2 * m.cooldown)
	m.mu.Unlock()
	m.OnFrame(voicedPayload(3))
	if !st.InterruptAI() {
		t.Error("interrupt not registered after cooldown")
	}
	if out.clearCount() != 2 {
		t.Errorf("clears = %d, want 2", out.clearCount())
	}
}

func TestTurnTakingEdgesAndSilenceTimer(t *testing.T) {
	st := session.NewState("CA1")
	out := &fakeControl{}
	fired := make(chan struct{}, 1)
	m := newTestMonitor(st, out, func() { fired <- struct{}{} })

	// Rising edge.
	m.OnFrame(voicedPayload(3))
	if !st.UserSpeaking() {
		t.Fatal("rising edge not tracked")
	}
	if st.UserSilenceDetected() {
		t.Error("silence flag should be cleared on rising edge")
	}

	// Falling edge arms the timer.
	m.OnFrame(silentPayload(1))
	if st.UserSpeaking() {
		t.Error("falling edge not tracked")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("silence timer never fired")
	}
	if !st.UserSilenceDetected() {
		t.Error("silence flag not set after timeout")
	}
	if out.clearCount() != 0 {
		t.Errorf("turn-taking branch sent %d clears", out.clearCount())
	}
}

func TestResumedSpeechCancelsSilenceTimer(t *testing.T) {
	st := session.NewState("CA1")
	fired := make(chan struct{}, 1)
	m := newTestMonitor(st, &fakeControl{}, func() { fired <- struct{}{} })

	m.OnFrame(voicedPayload(3)) // rising
	m.OnFrame(silentPayload(1)) // falling, timer armed
	m.OnFrame(voicedPayload(3)) // rising again before the timer fires

	select {
	case <-fired:
		t.Fatal("silence timer fired despite resumed speech")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNoInterruptWhileAISilent(t *testing.T) {
	st := session.NewState("CA1")
	out := &fakeControl{}
	m := newTestMonitor(st, out, nil)

	m.OnFrame(voicedPayload(3))
	if st.InterruptAI() {
		t.Error("interrupt registered while assistant silent")
	}
	if out.clearCount() != 0 {
		t.Errorf("clears = %d", out.clearCount())
	}
}
