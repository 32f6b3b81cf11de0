// Package session holds the per-call mutable state shared by the ingestion
// bridge, the orchestrator, the output dispatcher, and timer callbacks. All
// fields are private and reached through accessors guarded by a single
// call-wide mutex; the mutex is never held across blocking I/O.
package session

import (
	"sync"
	"time"
)

// Speaker tags a transcript entry.
type Speaker string

const (
	SpeakerLead Speaker = "lead"
	SpeakerAI   Speaker = "ai"
)

// TranscriptEntry is one utterance in the append-only call transcript.
type TranscriptEntry struct {
	Speaker Speaker
	Text    string
	At      time.Time
}

// SpellingKind identifies which field the conversation is collecting while in
// spelling mode.
type SpellingKind int

const (
	SpellingUnspecified SpellingKind = iota
	SpellingName
	SpellingEmail
	SpellingPhone
)

func (k SpellingKind) String() string {
	switch k {
	case SpellingName:
		return "name"
	case SpellingEmail:
		return "email"
	case SpellingPhone:
		return "phone"
	default:
		return "unspecified"
	}
}

// LeadInfo carries the caller context loaded before or during the call.
type LeadInfo struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	AgentName       string
	PropertyAddress string
	Source          string
	Tags            []string
}

// PlaceholderLead returns the failsafe context used when no lead record was
// loaded for the call.
func PlaceholderLead(id string) LeadInfo {
	return LeadInfo{
		ID:    id,
		Name:  "there",
		Email: "unknown@example.com",
		Phone: "unknown",
	}
}

// State is the single source of truth for one active call.
type State struct {
	mu sync.Mutex

	// Identity
	callSID   string
	leadID    string
	streamSID string
	inbound   bool
	phone     string
	lead      *LeadInfo

	// Transcript and conversation cursor
	transcript []TranscriptEntry
	step       int

	// Turn-taking flags
	aiSpeaking       bool
	interruptAI      bool
	userSpeaking     bool
	userSilence      bool
	clearCommandSent bool

	// Mode flags; at most one of spelling/assistance is true
	spellingMode   bool
	spellingKind   SpellingKind
	assistanceMode bool

	// Buffering
	bufferedText string
	pendingTimer *time.Timer
	silenceTimer *time.Timer

	// Timing metadata
	startTime           time.Time
	endTime             time.Time
	duration            time.Duration
	callEnded           bool
	transcriptProcessed bool
	notifyCompleted     bool
	degraded            bool

	// Structured data extracted by the conversation oracle
	extracted map[string]string
}

// NewState creates the state for one call.
func NewState(callSID string) *State {
	return &State{callSID: callSID, startTime: time.Now()}
}

// --- identity ---

func (s *State) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

func (s *State) SetLeadID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leadID = id
}

func (s *State) LeadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leadID
}

func (s *State) SetStreamSID(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = sid
}

func (s *State) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

func (s *State) SetInbound(inbound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = inbound
}

func (s *State) Inbound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbound
}

func (s *State) SetPhoneNumber(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = phone
}

func (s *State) PhoneNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone
}

func (s *State) SetLead(lead LeadInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = &lead
}

// Lead returns the lead context, falling back to a placeholder when none was
// loaded so downstream prompt formatting never sees nil.
func (s *State) Lead() LeadInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lead == nil {
		return PlaceholderLead(s.leadID)
	}
	return *s.lead
}

// --- transcript ---

// AppendTranscript appends one utterance. Entries are append-only for the
// life of the call and returned in insertion order.
func (s *State) AppendTranscript(speaker Speaker, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, TranscriptEntry{Speaker: speaker, Text: text, At: time.Now()})
}

// Transcript returns a copy of the transcript.
func (s *State) Transcript() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// IncrementStep advances the conversation cursor and returns the new value.
func (s *State) IncrementStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	return s.step
}

func (s *State) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// --- turn-taking flags ---

func (s *State) SetAISpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiSpeaking = speaking
}

func (s *State) AISpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiSpeaking
}

func (s *State) SetInterruptAI(interrupt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptAI = interrupt
}

func (s *State) InterruptAI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interruptAI
}

func (s *State) SetUserSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSpeaking = speaking
}

func (s *State) UserSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userSpeaking
}

func (s *State) SetUserSilenceDetected(silence bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSilence = silence
}

func (s *State) UserSilenceDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userSilence
}

func (s *State) SetClearCommandSent(sent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCommandSent = sent
}

func (s *State) ClearCommandSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCommandSent
}

// --- modes ---

// EnterSpellingMode enables spelling mode for the given kind. Assistance mode
// is cleared; the two are mutually exclusive.
func (s *State) EnterSpellingMode(kind SpellingKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spellingMode = true
	s.spellingKind = kind
	s.assistanceMode = false
}

func (s *State) ExitSpellingMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spellingMode = false
	s.spellingKind = SpellingUnspecified
}

func (s *State) SpellingMode() (bool, SpellingKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spellingMode, s.spellingKind
}

// EnterAssistanceMode enables assistance mode, clearing spelling mode.
func (s *State) EnterAssistanceMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistanceMode = true
	s.spellingMode = false
	s.spellingKind = SpellingUnspecified
}

func (s *State) ExitAssistanceMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistanceMode = false
}

func (s *State) AssistanceMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistanceMode
}

// --- transcription buffer ---

// AppendBufferedText appends a finalized partial to the dispatch buffer and
// returns the updated buffer contents.
func (s *State) AppendBufferedText(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bufferedText == "" {
		s.bufferedText = text
	} else {
		s.bufferedText += " " + text
	}
	return s.bufferedText
}

func (s *State) BufferedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferedText
}

// TakeBufferedText returns the buffer contents and clears them atomically.
func (s *State) TakeBufferedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.bufferedText
	s.bufferedText = ""
	return text
}

// --- timers ---

// SetPendingTimer installs the delayed-dispatch timer, cancelling any timer
// already pending. At most one pending timer exists per call by construction.
func (s *State) SetPendingTimer(t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
	}
	s.pendingTimer = t
}

// CancelPendingTimer stops and forgets the delayed-dispatch timer.
func (s *State) CancelPendingTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
}

// SetSilenceTimer installs the turn-taking silence timer, cancelling any
// timer already armed.
func (s *State) SetSilenceTimer(t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
	}
	s.silenceTimer = t
}

// CancelSilenceTimer stops and forgets the silence timer.
func (s *State) CancelSilenceTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
}

// CancelTimers cancels both per-call timers. Called unconditionally on call
// termination so an abandoned session never leaks a live timer.
func (s *State) CancelTimers() {
	s.CancelPendingTimer()
	s.CancelSilenceTimer()
}

// --- lifecycle ---

func (s *State) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// MarkEnded records the end of the call and its duration.
func (s *State) MarkEnded(end time.Time, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callEnded = true
	s.endTime = end
	if duration > 0 {
		s.duration = duration
	} else if !s.startTime.IsZero() {
		s.duration = end.Sub(s.startTime)
	}
}

func (s *State) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callEnded
}

func (s *State) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

func (s *State) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *State) SetTranscriptProcessed(processed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriptProcessed = processed
}

func (s *State) TranscriptProcessed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptProcessed
}

func (s *State) SetNotifyCompleted(notify bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyCompleted = notify
}

func (s *State) NotifyCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyCompleted
}

// SetDegraded marks the session as running without a healthy recognition
// stream. The call keeps going; ingestion keeps retrying.
func (s *State) SetDegraded(degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded = degraded
}

func (s *State) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// --- extracted data ---

// MergeExtractedData stores structured fields produced by the conversation
// oracle, overwriting previous values key by key.
func (s *State) MergeExtractedData(data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extracted == nil {
		s.extracted = make(map[string]string, len(data))
	}
	for k, v := range data {
		s.extracted[k] = v
	}
}

// ExtractedData returns a copy of the extracted fields.
func (s *State) ExtractedData() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extracted == nil {
		return nil
	}
	out := make(map[string]string, len(s.extracted))
	for k, v := range s.extracted {
		out[k] = v
	}
	return out
}
