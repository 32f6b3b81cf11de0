package live

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cadencevoice/callpipe/session"
	"github.com/cadencevoice/callpipe/vad"
)

const (
	// interruptCooldown spaces out barge-in registrations so one sustained
	// burst of speech cannot fire repeated interrupts.
	interruptCooldown = 2 * time.Second

	// silenceTimeout is how long after the caller stops talking the buffered
	// transcription is treated as a completed turn.
	silenceTimeout = 1200 * time.Millisecond
)

// ControlSender is the monitor's path to the transport for clear commands.
type ControlSender interface {
	SendClear() error
}

// Monitor watches every inbound frame for voice activity and runs the two
// turn-taking branches: barge-in while the assistant is speaking, and
// end-of-turn silence detection while it is not. It is independent of the
// recognizer, which reacts more slowly than the energy detector.
type Monitor struct {
	st       *session.State
	detector *vad.Detector
	out      ControlSender
	log      *slog.Logger

	// onSilence fires when the silence timer expires uninterrupted.
	onSilence func()

	cooldown    time.Duration
	silenceWait time.Duration

	mu            sync.Mutex
	lastInterrupt time.Time
	prevVoiced    bool
}

// NewMonitor creates the per-call monitor.
func NewMonitor(st *session.State, detector *vad.Detector, out ControlSender, onSilence func(), log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		st:          st,
		detector:    detector,
		out:         out,
		onSilence:   onSilence,
		cooldown:    interruptCooldown,
		silenceWait: silenceTimeout,
		log:         log.With("call_sid", st.CallSID()),
	}
}

// OnFrame processes one inbound mu-law payload. Called synchronously from
// the orchestrator's receive loop for every media event.
func (m *Monitor) OnFrame(ulawPayload []byte) {
	voiced := m.detector.ProcessPayload(ulawPayload)

	if m.st.AISpeaking() {
		m.interruptBranch(voiced)
		return
	}
	m.turnTakingBranch(voiced)
}

// interruptBranch registers at most one barge-in per utterance, rate-limited
// by the cooldown, and clears the carrier's output buffer once.
func (m *Monitor) interruptBranch(voiced bool) {
	if !voiced {
		return
	}
	if m.st.InterruptAI() {
		return
	}

	m.mu.Lock()
	if time.Since(m.lastInterrupt) < m.cooldown {
		m.mu.Unlock()
		return
	}
	m.lastInterrupt = time.Now()
	m.mu.Unlock()

	m.st.SetInterruptAI(true)
	m.log.Info("barge-in detected", "energy", m.detector.LastEnergy())

	if !m.st.ClearCommandSent() {
		m.st.SetClearCommandSent(true)
		if err := m.out.SendClear(); err != nil {
			m.log.Warn("clear command failed", "error", err)
		}
	}
}

// turnTakingBranch tracks rising and falling edges of the voice signal. A
// falling edge arms the silence timer; if it fires uninterrupted, buffered
// transcription is treated as a completed turn even though the recognizer
// has not emitted a final for the trailing silence.
func (m *Monitor) turnTakingBranch(voiced bool) {
	m.mu.Lock()
	prev := m.prevVoiced
	m.prevVoiced = voiced
	m.mu.Unlock()

	switch {
	case voiced && !prev:
		// Rising edge.
		m.st.SetUserSpeaking(true)
		m.st.SetUserSilenceDetected(false)
		m.st.CancelSilenceTimer()
	case !voiced && prev:
		// Falling edge.
		m.st.SetUserSpeaking(false)
		m.st.SetSilenceTimer(time.AfterFunc(m.silenceWait, m.silenceExpired))
	}
}

func (m *Monitor) silenceExpired() {
	if m.st.Ended() {
		return
	}
	m.st.SetUserSilenceDetected(true)
	m.log.Debug("silence timeout, flushing turn")
	if m.onSilence != nil {
		m.onSilence()
	}
}
