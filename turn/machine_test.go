package turn

import (
	"testing"
	"time"

	"github.com/cadencevoice/callpipe/session"
)

func newTestMachine() (*Machine, *session.State) {
	st := session.NewState("CA1")
	return NewMachine(st, nil), st
}

func TestDirectModeDispatchesImmediately(t *testing.T) {
	m, _ := newTestMachine()

	res := m.OnFinal("I'd like to see the house on Elm Street")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Text != "I'd like to see the house on Elm Street" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Delay != 0 {
		t.Errorf("Delay = %v", res.Delay)
	}
}

func TestDirectModeClassificationIsAdvisory(t *testing.T) {
	m, _ := newTestMachine()

	res := m.OnFinal("yes")
	if res.Action != ActionDispatch {
		t.Errorf("confirmation in direct mode must still dispatch, got %v", res.Action)
	}
	if res.Classification != ClassConfirmation {
		t.Errorf("Classification = %v", res.Classification)
	}
}

func TestDuplicateFinalWithinWindowIsSuppressed(t *testing.T) {
	m, _ := newTestMachine()

	res := m.OnFinal("hello there")
	if res.Action != ActionDispatch {
		t.Fatal("first final should dispatch")
	}
	m.MarkDispatched(res.Text)

	if res := m.OnFinal("hello there"); res.Action != ActionSuppress {
		t.Errorf("duplicate within 1s: Action = %v, want suppress", res.Action)
	}
	if res := m.OnFinal("hello again"); res.Action != ActionDispatch {
		t.Errorf("different text must not be suppressed, got %v", res.Action)
	}
}

func TestSpellingEmailBuffersUntilDomain(t *testing.T) {
	m, st := newTestMachine()
	m.ObserveAIUtterance("Could you spell your email for me?")

	res := m.OnFinal("j o h n")
	if res.Action != ActionBuffer {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Delay != emailDelay {
		t.Errorf("Delay = %v, want %v", res.Delay, emailDelay)
	}

	res = m.OnFinal("at g m a i l")
	if res.Action != ActionBuffer {
		t.Fatalf("Action = %v", res.Action)
	}

	// The domain token completes the address: dispatch without the timeout.
	res = m.OnFinal("dot com")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v, want dispatch on domain completion", res.Action)
	}
	if res.Text != "j o h n at g m a i l dot com" {
		t.Errorf("Text = %q", res.Text)
	}
	if st.BufferedText() != "" {
		t.Error("buffer not cleared after dispatch")
	}
}

func TestSpellingPhoneDelayTightensAtTenDigits(t *testing.T) {
	m, _ := newTestMachine()
	m.ObserveAIUtterance("What's the best phone number to reach you?")

	res := m.OnFinal("five five five")
	if res.Action != ActionBuffer || res.Delay != phoneDelay {
		t.Fatalf("partial digits: Action=%v Delay=%v", res.Action, res.Delay)
	}

	res = m.OnFinal("one two three")
	if res.Delay != phoneDelay {
		t.Errorf("six digits: Delay = %v, want %v", res.Delay, phoneDelay)
	}

	res = m.OnFinal("four five six seven")
	if res.Action != ActionBuffer {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Delay != phoneDelayComplete {
		t.Errorf("ten digits: Delay = %v, want %v", res.Delay, phoneDelayComplete)
	}
}

func TestSpellingConfirmationDispatchesAndExitsMode(t *testing.T) {
	m, st := newTestMachine()
	m.ObserveAIUtterance("Could you spell your email for me?")
	m.OnFinal("j at x dot io")

	res := m.OnFinal("yes that's right")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Classification != ClassConfirmation {
		t.Errorf("Classification = %v", res.Classification)
	}
	if on, _ := st.SpellingMode(); on {
		t.Error("spelling mode should exit on confirmation")
	}
}

func TestSpellingRejectionDispatchesButStaysInMode(t *testing.T) {
	m, st := newTestMachine()
	m.ObserveAIUtterance("And your phone number?")
	m.OnFinal("five five five one two one two")

	res := m.OnFinal("no that's wrong")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Classification != ClassRejection {
		t.Errorf("Classification = %v", res.Classification)
	}
	if on, kind := st.SpellingMode(); !on || kind != session.SpellingPhone {
		t.Error("rejection must keep the machine in phone spelling mode")
	}

	// Re-spelling after a rejection uses the slightly longer window.
	res = m.OnFinal("five five five")
	if res.Delay != phoneDelayReSpell {
		t.Errorf("post-rejection Delay = %v, want %v", res.Delay, phoneDelayReSpell)
	}
}

func TestSpellingNameDispatchesImmediately(t *testing.T) {
	m, _ := newTestMachine()
	m.ObserveAIUtterance("May I have your name?")

	res := m.OnFinal("Jordan Avery")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Text != "Jordan Avery" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestAssistanceCompletionDispatchesAndExits(t *testing.T) {
	m, st := newTestMachine()
	m.ObserveAIUtterance("Is there anything else I can help you with?")

	res := m.OnFinal("I'd like a morning showing if possible")
	if res.Action != ActionBuffer {
		t.Fatalf("Action = %v", res.Action)
	}

	res = m.OnFinal("no that's all")
	if res.Action != ActionDispatch {
		t.Fatalf("Action = %v", res.Action)
	}
	if res.Text != "I'd like a morning showing if possible no that's all" {
		t.Errorf("Text = %q", res.Text)
	}
	if st.AssistanceMode() {
		t.Error("assistance mode should exit on completion")
	}
}

func TestObserveAIUtteranceModeIsExclusive(t *testing.T) {
	m, st := newTestMachine()

	m.ObserveAIUtterance("Could you spell your email for me?")
	m.ObserveAIUtterance("Is there anything else I can help you with?")
	if on, _ := st.SpellingMode(); on {
		t.Error("spelling mode should be cleared when assistance begins")
	}
	if !st.AssistanceMode() {
		t.Error("assistance mode should be active")
	}

	m.ObserveAIUtterance("The showing is booked for Saturday.")
	if mode, _ := m.Mode(); mode != ModeDirect {
		t.Errorf("Mode = %v, want direct", mode)
	}
}

func TestOnSilenceTimeoutFlushesBuffer(t *testing.T) {
	m, _ := newTestMachine()
	m.ObserveAIUtterance("Could you spell your email for me?")
	m.OnFinal("j o h n")

	if got := m.OnSilenceTimeout(); got != "j o h n" {
		t.Errorf("flushed %q", got)
	}
	if got := m.OnSilenceTimeout(); got != "" {
		t.Errorf("second flush returned %q", got)
	}
}

func TestDuplicateWindowExpires(t *testing.T) {
	m, _ := newTestMachine()
	res := m.OnFinal("same words")
	m.MarkDispatched(res.Text)

	m.mu.Lock()
	m.lastDispatchAt = time.Now().Add(-2 * duplicateWindow)
	m.mu.Unlock()

	if res := m.OnFinal("same words"); res.Action != ActionDispatch {
		t.Errorf("expired duplicate window: Action = %v, want dispatch", res.Action)
	}
}
