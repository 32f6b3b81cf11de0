package turn

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cadencevoice/callpipe/session"
)

// Dispatch timing policy while a mode is buffering input. Name collection
// never waits: single-utterance names dispatch on arrival. Email waits
// longest because addresses arrive letter by letter; a recognizable domain
// token means the caller finished and the wait is skipped. Phone tightens
// once enough digits are in hand, and loosens slightly right after a
// rejection so re-spelling is not cut off.
const (
	emailDelay          = 6500 * time.Millisecond
	phoneDelay          = 1500 * time.Millisecond
	phoneDelayComplete  = 800 * time.Millisecond
	phoneDelayReSpell   = 1000 * time.Millisecond
	genericDelay        = 800 * time.Millisecond
	genericMidSpellWait = 1500 * time.Millisecond
	assistanceDelay     = 6500 * time.Millisecond

	// duplicateWindow suppresses identical finals re-emitted by the
	// recognizer within this span of the previous dispatch.
	duplicateWindow = time.Second

	phoneDigitsComplete = 10
)

var (
	emailDomainRe = regexp.MustCompile(`(?i)(\bdot\s*(com|net|org|edu|gov|io|co)\b|\.(com|net|org|edu|gov|io|co)\b|@)`)
	singleLetterRe = regexp.MustCompile(`^[a-z]$`)
)

// Action is the machine's decision for one finalized transcription.
type Action int

const (
	// ActionDispatch hands the text to the conversation oracle now.
	ActionDispatch Action = iota

	// ActionBuffer appends to the call buffer and (re-)arms the dispatch
	// timer for Result.Delay.
	ActionBuffer

	// ActionSuppress drops the text as a duplicate re-emission.
	ActionSuppress
)

// Result is the machine's output for one finalized transcription.
type Result struct {
	Action Action

	// Text is the full text to dispatch when Action is ActionDispatch
	// (buffered content plus the new input).
	Text string

	// Delay is the timer to arm when Action is ActionBuffer.
	Delay time.Duration

	// Classification of the input against a pending confirmation question.
	// In direct mode this is informational only.
	Classification Classification
}

// Machine decides, per finalized transcription, whether to dispatch to the
// oracle immediately or keep buffering. Mode transitions are driven by the
// assistant's own utterances via ObserveAIUtterance.
type Machine struct {
	st  *session.State
	log *slog.Logger

	mu             sync.Mutex
	lastDispatch   string
	lastDispatchAt time.Time
	lastRejected   bool
}

// NewMachine creates the per-call machine bound to the call's state.
func NewMachine(st *session.State, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{st: st, log: log.With("call_sid", st.CallSID())}
}

// ObserveAIUtterance classifies the assistant's reply and moves the machine
// into the mode the reply calls for. Called after every dispatched response.
func (m *Machine) ObserveAIUtterance(text string) {
	mode, kind := ClassifyIntent(text)
	switch mode {
	case ModeSpelling:
		m.st.EnterSpellingMode(kind)
		m.log.Info("entering spelling mode", "kind", kind.String())
	case ModeAssistance:
		m.st.EnterAssistanceMode()
		m.log.Info("entering assistance mode")
	default:
		m.st.ExitSpellingMode()
		m.st.ExitAssistanceMode()
	}
	m.mu.Lock()
	m.lastRejected = false
	m.mu.Unlock()
}

// Mode reports the machine's current mode from the call state.
func (m *Machine) Mode() (Mode, session.SpellingKind) {
	if on, kind := m.st.SpellingMode(); on {
		return ModeSpelling, kind
	}
	if m.st.AssistanceMode() {
		return ModeAssistance, session.SpellingUnspecified
	}
	return ModeDirect, session.SpellingUnspecified
}

// OnFinal processes one finalized transcription and returns the dispatch
// decision. When the result is ActionDispatch the caller must invoke
// MarkDispatched with the dispatched text; when it is ActionBuffer the
// caller arms the pending timer for Result.Delay.
func (m *Machine) OnFinal(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Action: ActionSuppress}
	}

	if m.isDuplicate(text) {
		m.log.Debug("suppressing duplicate final", "text", text)
		return Result{Action: ActionSuppress}
	}

	class := Classify(text)
	mode, kind := m.Mode()

	switch mode {
	case ModeSpelling:
		return m.onSpelling(text, kind, class)
	case ModeAssistance:
		return m.onAssistance(text, class)
	default:
		// Direct mode: every final dispatches, classification is advisory.
		full := m.takeWithBuffer(text)
		return Result{Action: ActionDispatch, Text: full, Classification: class}
	}
}

// OnSilenceTimeout flushes the buffer when the turn-taking monitor decides
// the caller has stopped talking. Returns the text to dispatch, or "" when
// the buffer is empty.
func (m *Machine) OnSilenceTimeout() string {
	m.st.CancelPendingTimer()
	return m.st.TakeBufferedText()
}

// MarkDispatched records a completed dispatch for duplicate suppression.
func (m *Machine) MarkDispatched(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDispatch = strings.TrimSpace(text)
	m.lastDispatchAt = time.Now()
}

func (m *Machine) onSpelling(text string, kind session.SpellingKind, class Classification) Result {
	switch class {
	case ClassConfirmation:
		// Field captured. Dispatch now and return to direct handling.
		m.st.ExitSpellingMode()
		m.st.CancelPendingTimer()
		m.mu.Lock()
		m.lastRejected = false
		m.mu.Unlock()
		return Result{Action: ActionDispatch, Text: m.takeWithBuffer(text), Classification: class}
	case ClassRejection:
		// Wrong capture. Dispatch so the assistant can re-ask, stay in the
		// mode so the re-spelling is buffered the same way.
		m.st.CancelPendingTimer()
		m.mu.Lock()
		m.lastRejected = true
		m.mu.Unlock()
		return Result{Action: ActionDispatch, Text: m.takeWithBuffer(text), Classification: class}
	}

	buffer := m.st.AppendBufferedText(text)

	if kind == session.SpellingName {
		// Names arrive whole; waiting only adds dead air.
		full := m.st.TakeBufferedText()
		return Result{Action: ActionDispatch, Text: full, Classification: class}
	}
	if kind == session.SpellingEmail && emailDomainRe.MatchString(buffer) {
		full := m.st.TakeBufferedText()
		return Result{Action: ActionDispatch, Text: full, Classification: class}
	}

	return Result{Action: ActionBuffer, Delay: m.bufferDelay(kind, buffer), Classification: class}
}

func (m *Machine) onAssistance(text string, class Classification) Result {
	if IsCompletion(text) {
		m.st.ExitAssistanceMode()
		m.st.CancelPendingTimer()
		return Result{Action: ActionDispatch, Text: m.takeWithBuffer(text), Classification: class}
	}
	m.st.AppendBufferedText(text)
	return Result{Action: ActionBuffer, Delay: assistanceDelay, Classification: class}
}

// bufferDelay picks the re-arm delay for the pending dispatch timer.
func (m *Machine) bufferDelay(kind session.SpellingKind, buffer string) time.Duration {
	switch kind {
	case session.SpellingEmail:
		return emailDelay
	case session.SpellingPhone:
		if digitCount(buffer) >= phoneDigitsComplete {
			return phoneDelayComplete
		}
		m.mu.Lock()
		rejected := m.lastRejected
		m.mu.Unlock()
		if rejected {
			return phoneDelayReSpell
		}
		return phoneDelay
	default:
		if looksMidSpelling(buffer) {
			return genericMidSpellWait
		}
		return genericDelay
	}
}

// takeWithBuffer joins any buffered text with the new input and clears the
// buffer.
func (m *Machine) takeWithBuffer(text string) string {
	buffered := m.st.TakeBufferedText()
	if buffered == "" {
		return text
	}
	return buffered + " " + text
}

func (m *Machine) isDuplicate(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return text == m.lastDispatch && time.Since(m.lastDispatchAt) < duplicateWindow
}

// digitCount counts numeric digits plus spoken digit words.
func digitCount(text string) int {
	n := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		switch w {
		case "zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "oh":
			n++
		}
	}
	return n
}

// looksMidSpelling reports whether the buffer ends in a lone letter, meaning
// the caller is most likely partway through spelling something out.
func looksMidSpelling(buffer string) bool {
	words := strings.Fields(strings.ToLower(buffer))
	if len(words) == 0 {
		return false
	}
	return singleLetterRe.MatchString(words[len(words)-1])
}
