package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadencevoice/callpipe/oracle"
	"github.com/cadencevoice/callpipe/session"
	"github.com/cadencevoice/callpipe/stt"
	"github.com/cadencevoice/callpipe/tts"
	"github.com/cadencevoice/callpipe/turn"
	"github.com/cadencevoice/callpipe/vad"
)

const (
	// completionPoll is how often Run checks the externally-set completion
	// flag while the stream is otherwise quiet.
	completionPoll = time.Second

	fallbackGreeting = "Hi, thanks for calling! How can I help you today?"
)

// Metrics receives call lifecycle counters. Implementations must be safe for
// concurrent use. All methods may be called from multiple goroutines.
type Metrics interface {
	CallStarted()
	CallEnded(duration time.Duration)
	TurnDispatched()
	BargeIn()
}

// Config wires one call's collaborators.
type Config struct {
	Registry   *session.Registry
	STT        stt.Provider
	STTSession stt.SessionConfig
	Dispatcher *tts.Dispatcher
	Oracle     oracle.Oracle
	Metrics    Metrics // optional
	Logger     *slog.Logger
}

// Handler orchestrates one media stream connection for its whole life:
// Connected, then Active while media flows, then Ended.
type Handler struct {
	cfg  Config
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	// Set on the start event.
	st      *session.State
	bridge  *stt.Bridge
	machine *turn.Machine
	monitor *Monitor

	// dispatchMu serializes oracle turns so replies never interleave.
	dispatchMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler wraps an accepted media stream connection.
func NewHandler(conn *websocket.Conn, cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:  cfg,
		conn: conn,
		log:  log,
		done: make(chan struct{}),
	}
}

// Run drives the connection until the stream stops or the transport closes.
// Reads happen on a dedicated goroutine: a gorilla connection caches read
// errors permanently, so the read must stay blocked with no deadline while
// Run multiplexes messages against the completion poll and cancellation.
func (h *Handler) Run(ctx context.Context) error {
	defer h.finish()

	msgs := make(chan *Message, 16)
	readErr := make(chan error, 1)
	go h.readLoop(msgs, readErr)

	ticker := time.NewTicker(completionPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case err := <-readErr:
			h.log.Info("media stream closed", "error", err)
			return nil
		case <-ticker.C:
			if h.checkCompletion() {
				return nil
			}
		case msg := <-msgs:
			switch msg.Event {
			case EventConnected:
				h.log.Debug("media stream connected")
			case EventStart:
				h.onStart(ctx, msg)
			case EventMedia:
				h.onMedia(msg)
			case EventStop:
				h.log.Info("media stream stopped")
				return nil
			}
		}
	}
}

// readLoop owns all reads on the connection. It exits on the first read
// error, which finish() forces by closing the transport.
func (h *Handler) readLoop(msgs chan<- *Message, readErr chan<- error) {
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		msg, err := ParseMessage(data)
		if err != nil {
			h.log.Warn("unparseable stream message", "error", err)
			continue
		}
		select {
		case msgs <- msg:
		case <-h.done:
			return
		}
	}
}

// onStart binds the stream to its call, opens recognition, and greets.
func (h *Handler) onStart(ctx context.Context, msg *Message) {
	if msg.Start == nil {
		h.log.Warn("start event without payload")
		return
	}
	callSID := msg.Start.CallSID
	h.log = h.log.With("call_sid", callSID)

	st := h.cfg.Registry.Get(callSID)
	st.SetStreamSID(msg.Start.StreamSID)
	applyCustomParameters(st, msg.Start.CustomParameters)
	h.st = st

	h.machine = turn.NewMachine(st, h.log)
	h.monitor = NewMonitor(st, vad.New(vad.DefaultConfig()), h, h.flushTurn, h.log)

	h.bridge = stt.NewBridge(callSID, stt.BridgeConfig{
		Provider:   h.cfg.STT,
		Session:    h.cfg.STTSession,
		OnDegraded: st.SetDegraded,
		Logger:     h.log,
	})
	if err := h.bridge.Start(ctx); err != nil {
		// The call continues; the bridge keeps retrying from inside once
		// started, but a failed first open means we run degraded until the
		// next media-triggered restart.
		h.log.Error("recognition start failed", "error", err)
		st.SetDegraded(true)
	} else {
		go h.consumeTranscription()
	}

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.CallStarted()
	}

	go h.cfg.Oracle.WarmUp(ctx)
	if st.Inbound() {
		go h.greet(ctx)
	}

	h.log.Info("call active", "stream_sid", msg.Start.StreamSID, "inbound", st.Inbound())
}

// onMedia fans one frame out to recognition and the barge-in monitor. The
// bridge enqueue never blocks, so the monitor always runs promptly.
func (h *Handler) onMedia(msg *Message) {
	if h.st == nil {
		return
	}
	payload, err := msg.AudioBytes()
	if err != nil {
		h.log.Warn("bad media payload", "error", err)
		return
	}
	if h.bridge != nil {
		h.bridge.AddFrame(payload)
	}
	h.monitor.OnFrame(payload)
}

// consumeTranscription forwards recognizer output into the turn machine.
func (h *Handler) consumeTranscription() {
	for ev := range h.bridge.Events() {
		switch ev.Type {
		case stt.EventFinal:
			if ev.Text == "" {
				continue
			}
			h.handleFinal(ev.Text)
		case stt.EventSpeechBegin:
			h.log.Debug("provider speech begin")
		case stt.EventSpeechEnd:
			h.log.Debug("provider speech end")
		}
	}
}

// handleFinal applies the turn machine's decision for one final.
func (h *Handler) handleFinal(text string) {
	res := h.machine.OnFinal(text)
	switch res.Action {
	case turn.ActionDispatch:
		h.dispatch(res.Text)
	case turn.ActionBuffer:
		h.st.SetPendingTimer(time.AfterFunc(res.Delay, h.flushTurn))
	case turn.ActionSuppress:
	}
}

// flushTurn dispatches whatever is buffered. Fires from the delayed-dispatch
// timer and from the silence timer; both paths collapse here.
func (h *Handler) flushTurn() {
	if h.st == nil || h.st.Ended() {
		return
	}
	text := h.machine.OnSilenceTimeout()
	if text == "" {
		return
	}
	h.dispatch(text)
}

// dispatch runs one oracle turn: record the caller utterance, generate the
// reply, and speak it. Serialised per call so replies cannot interleave.
func (h *Handler) dispatch(text string) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.st.Ended() {
		return
	}

	history := h.st.Transcript()
	h.st.AppendTranscript(session.SpeakerLead, text)
	h.machine.MarkDispatched(text)
	h.relayTranscript(session.SpeakerLead, text)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := h.cfg.Oracle.Respond(ctx, h.st.Lead(), history, text)
	if err != nil {
		h.log.Error("oracle turn failed, using fallback", "error", err)
		reply = oracle.Fallback()
	}
	if len(reply.Data) > 0 {
		h.st.MergeExtractedData(reply.Data)
	}

	h.speak(ctx, reply)
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.TurnDispatched()
	}
}

// greet speaks the opening utterance on an inbound call before any caller
// input.
func (h *Handler) greet(ctx context.Context) {
	reply, err := h.cfg.Oracle.Greeting(ctx, h.st.Lead())
	if err != nil {
		h.log.Warn("greeting generation failed, using fallback", "error", err)
		reply = oracle.Reply{Text: fallbackGreeting}
	}
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	h.speak(ctx, reply)
}

// speak records and voices one assistant reply. Caller holds dispatchMu.
func (h *Handler) speak(ctx context.Context, reply oracle.Reply) {
	if reply.Text == "" {
		return
	}
	h.st.AppendTranscript(session.SpeakerAI, reply.Text)
	h.relayTranscript(session.SpeakerAI, reply.Text)
	h.machine.ObserveAIUtterance(reply.Text)
	h.updateRecognizerHints()

	if err := h.cfg.Dispatcher.Speak(ctx, h.st, h, reply.Text); err != nil {
		h.log.Error("playback failed", "error", err)
	}

	if reply.EndCall {
		h.log.Info("assistant ended the conversation")
		h.st.SetNotifyCompleted(true)
	}
}

// updateRecognizerHints biases recognition toward the vocabulary of the
// current collection mode. Hints apply on the bridge's next session.
func (h *Handler) updateRecognizerHints() {
	if h.bridge == nil {
		return
	}
	mode, kind := h.machine.Mode()
	if mode == turn.ModeSpelling {
		h.bridge.SetHints(turn.RecognizerHints(kind))
	} else {
		h.bridge.SetHints(nil)
	}
}

// checkCompletion handles completion signaled by the status webhook (or the
// assistant) while the stream is idle.
func (h *Handler) checkCompletion() bool {
	if h.st == nil {
		return false
	}
	if !h.st.NotifyCompleted() {
		return false
	}
	if !h.st.Ended() {
		h.st.MarkEnded(time.Now(), 0)
	}
	h.send(CallCompletedMessage(h.st.CallSID()))
	h.log.Info("call completion notified")
	return true
}

// finish tears the call down exactly once.
func (h *Handler) finish() {
	h.closeOnce.Do(func() {
		close(h.done)
		if h.bridge != nil {
			h.bridge.Terminate()
		}
		if h.st != nil {
			if !h.st.Ended() {
				h.st.MarkEnded(time.Now(), 0)
			}
			h.st.CancelTimers()
			if h.cfg.Metrics != nil {
				h.cfg.Metrics.CallEnded(h.st.Duration())
			}
		}
		h.conn.Close()
		h.log.Info("call torn down")
	})
}

// SendAudio implements tts.Output.
func (h *Handler) SendAudio(chunk []byte) error {
	return h.send(MediaMessage(h.st.StreamSID(), chunk))
}

// SendClear implements tts.Output and ControlSender.
func (h *Handler) SendClear() error {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.BargeIn()
	}
	return h.send(ClearMessage(h.st.StreamSID()))
}

func (h *Handler) send(msg *Message) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return h.conn.WriteJSON(msg)
}

func (h *Handler) relayTranscript(speaker session.Speaker, text string) {
	if err := h.send(TranscriptMessage(h.st.CallSID(), string(speaker), text)); err != nil {
		h.log.Debug("transcript relay failed", "error", err)
	}
}

// applyCustomParameters copies caller context passed by the voice webhook.
func applyCustomParameters(st *session.State, params map[string]string) {
	if params == nil {
		st.SetInbound(true)
		return
	}
	st.SetInbound(params["direction"] != "outbound")
	if v := params["lead_id"]; v != "" {
		st.SetLeadID(v)
	}
	if v := params["phone"]; v != "" {
		st.SetPhoneNumber(v)
	}
	lead := session.LeadInfo{
		ID:              params["lead_id"],
		Name:            params["lead_name"],
		Email:           params["lead_email"],
		Phone:           params["phone"],
		AgentName:       params["agent_name"],
		PropertyAddress: params["property_address"],
		Source:          params["source"],
	}
	if lead.Name != "" || lead.Email != "" || lead.Phone != "" {
		if lead.Name == "" {
			lead.Name = "there"
		}
		st.SetLead(lead)
	}
}
