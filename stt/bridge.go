package stt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cadencevoice/callpipe/obs"
)

const (
	// defaultRestartInterval bounds session age when the provider does not
	// advertise a hard limit.
	defaultRestartInterval = 305 * time.Second

	// restartMargin is how far before the provider's hard limit a session is
	// proactively replaced.
	restartMargin = 60 * time.Second

	defaultReopenBackoff   = 2 * time.Second
	defaultFeedPollTimeout = 1500 * time.Millisecond
	defaultFrameQueueSize  = 256
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Provider Provider
	Session  SessionConfig

	// ReopenBackoff is the pause between failed attempts to open a
	// replacement session. Defaults to 2s.
	ReopenBackoff time.Duration

	// FeedPollTimeout bounds how long the feed loop waits for a frame before
	// rechecking for termination. Defaults to 1.5s.
	FeedPollTimeout time.Duration

	// FrameQueueSize is the capacity of the inbound frame queue. Frames
	// arriving while the queue is full are dropped. Defaults to 256.
	FrameQueueSize int

	// OnDegraded is invoked when the bridge loses its recognition stream and
	// again when it recovers. May be nil.
	OnDegraded func(degraded bool)

	Logger *slog.Logger
}

// Bridge keeps a live recognition stream running for the duration of a call.
// Provider sessions have a hard duration limit, so the bridge proactively
// replaces its session shortly before the limit and reactively replaces it on
// failure. Frames arriving while a replacement is being opened are held in a
// side buffer and drained into the new session in arrival order, so callers
// see one uninterrupted stream of events.
type Bridge struct {
	cfg    BridgeConfig
	log    *slog.Logger
	callID string

	frames chan []byte
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	pumps     sync.WaitGroup

	mu           sync.Mutex
	active       Session
	swapping     bool
	sideBuf      [][]byte
	restartTimer *time.Timer
	dropped      int
}

// NewBridge creates a bridge for one call. Start must be called before
// feeding audio.
func NewBridge(callID string, cfg BridgeConfig) *Bridge {
	if cfg.ReopenBackoff <= 0 {
		cfg.ReopenBackoff = defaultReopenBackoff
	}
	if cfg.FeedPollTimeout <= 0 {
		cfg.FeedPollTimeout = defaultFeedPollTimeout
	}
	if cfg.FrameQueueSize <= 0 {
		cfg.FrameQueueSize = defaultFrameQueueSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		cfg:    cfg,
		log:    log.With("call_sid", callID),
		callID: callID,
		frames: make(chan []byte, cfg.FrameQueueSize),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// Start opens the initial session and launches the feed loop. It blocks until
// the first session is open or ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	sess, err := b.cfg.Provider.Open(ctx, b.sessionConfig())
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.active = sess
	b.mu.Unlock()

	b.pumps.Add(1)
	go b.pump(sess)
	go b.feedLoop()
	b.armRestartTimer()

	b.log.Info("recognition stream open", "provider", b.cfg.Provider.Capabilities().Provider)
	return nil
}

// Events delivers recognition events across all underlying sessions. The
// channel is closed by Terminate.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// AddFrame enqueues one audio frame without blocking. Frames are dropped when
// the queue is full; recognition tolerates small gaps, the media loop does
// not tolerate stalls.
func (b *Bridge) AddFrame(frame []byte) {
	select {
	case <-b.done:
		return
	default:
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case b.frames <- buf:
	default:
		b.mu.Lock()
		b.dropped++
		n := b.dropped
		b.mu.Unlock()
		if n%100 == 1 {
			b.log.Warn("frame queue full, dropping audio", "dropped_total", n)
		}
	}
}

// SetHints replaces the recognizer keyword hints. They take effect when the
// next session opens, proactively or after a failure.
func (b *Bridge) SetHints(hints []string) {
	b.mu.Lock()
	b.cfg.Session.Keywords = append([]string(nil), hints...)
	b.mu.Unlock()
}

func (b *Bridge) sessionConfig() SessionConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Session
}

// Terminate shuts the bridge down, closes the current session, and closes the
// events channel once all session pumps have drained.
func (b *Bridge) Terminate() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		if b.restartTimer != nil {
			b.restartTimer.Stop()
			b.restartTimer = nil
		}
		sess := b.active
		b.active = nil
		b.mu.Unlock()
		if sess != nil {
			sess.Close()
		}
		b.pumps.Wait()
		close(b.events)
		b.log.Info("recognition bridge terminated")
	})
}

func (b *Bridge) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// restartInterval derives the proactive replacement period from the
// provider's advertised session limit.
func (b *Bridge) restartInterval() time.Duration {
	max := b.cfg.Provider.Capabilities().MaxSessionDuration
	if max <= restartMargin {
		return defaultRestartInterval
	}
	return max - restartMargin
}

func (b *Bridge) armRestartTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed() {
		return
	}
	if b.restartTimer != nil {
		b.restartTimer.Stop()
	}
	b.restartTimer = time.AfterFunc(b.restartInterval(), func() {
		b.restart("session age limit")
	})
}

// feedLoop is the single goroutine that moves frames from the queue into the
// active session, preserving arrival order across session swaps.
func (b *Bridge) feedLoop() {
	poll := time.NewTimer(b.cfg.FeedPollTimeout)
	defer poll.Stop()
	for {
		if !poll.Stop() {
			select {
			case <-poll.C:
			default:
			}
		}
		poll.Reset(b.cfg.FeedPollTimeout)

		select {
		case <-b.done:
			return
		case <-poll.C:
			continue
		case frame := <-b.frames:
			b.deliver(frame)
		}
	}
}

func (b *Bridge) deliver(frame []byte) {
	b.mu.Lock()
	if b.swapping || b.active == nil {
		b.sideBuf = append(b.sideBuf, frame)
		b.mu.Unlock()
		return
	}
	sess := b.active
	b.mu.Unlock()

	if err := sess.Feed(frame); err != nil {
		b.log.Warn("feed failed, replacing recognition stream", "error", err)
		b.mu.Lock()
		b.sideBuf = append(b.sideBuf, frame)
		b.mu.Unlock()
		go b.restart("feed error")
	}
}

// pump forwards one session's events outward. When the session's channel
// closes while that session is still active, the stream died underneath us
// and a replacement is opened.
func (b *Bridge) pump(sess Session) {
	defer b.pumps.Done()
	for ev := range sess.Events() {
		if ev.Type == EventError {
			b.log.Warn("recognition stream error", "error", ev.Err)
			continue
		}
		select {
		case b.events <- ev:
		case <-b.done:
			return
		}
	}
	if b.closed() {
		return
	}
	b.mu.Lock()
	stillActive := b.active == sess
	b.mu.Unlock()
	if stillActive {
		go b.restart("stream closed")
	}
}

// restart replaces the active session. Frames keep arriving during the swap;
// they collect in the side buffer and are drained into the new session before
// it takes over.
func (b *Bridge) restart(reason string) {
	b.mu.Lock()
	if b.closed() || b.swapping {
		b.mu.Unlock()
		return
	}
	b.swapping = true
	old := b.active
	b.mu.Unlock()

	b.log.Info("replacing recognition stream", "reason", reason)
	obs.RecordSTTRestart(context.Background(), reason)

	var sess Session
	for {
		sess = b.reopen()
		if sess == nil {
			return
		}
		if b.closed() {
			sess.Close()
			return
		}
		if b.drainInto(sess) {
			break
		}
		sess.Close()
		b.setDegraded(true)
		select {
		case <-b.done:
			return
		case <-time.After(b.cfg.ReopenBackoff):
		}
	}

	b.pumps.Add(1)
	go b.pump(sess)
	if old != nil {
		old.Close()
	}
	b.armRestartTimer()
	b.setDegraded(false)
	b.log.Info("recognition stream replaced")
}

// drainInto feeds held frames into the replacement and installs it as the
// active session once the side buffer is empty. Feed blocks on provider I/O,
// so it runs with the lock released; frames still arriving append behind the
// snapshot being drained, which keeps arrival order. On a feed error the
// undelivered remainder goes back to the front of the buffer for the next
// replacement attempt and the session is rejected.
func (b *Bridge) drainInto(sess Session) bool {
	for {
		b.mu.Lock()
		if len(b.sideBuf) == 0 {
			b.active = sess
			b.swapping = false
			b.mu.Unlock()
			return true
		}
		held := b.sideBuf
		b.sideBuf = nil
		b.mu.Unlock()

		for i, frame := range held {
			if err := sess.Feed(frame); err != nil {
				b.log.Warn("replacement stream rejected held audio", "error", err)
				b.mu.Lock()
				b.sideBuf = append(held[i:], b.sideBuf...)
				b.mu.Unlock()
				return false
			}
		}
	}
}

// reopen attempts to open a replacement session, backing off between
// failures until the bridge terminates. Returns nil only on termination.
func (b *Bridge) reopen() Session {
	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		sess, err := b.cfg.Provider.Open(ctx, b.sessionConfig())
		if err == nil {
			return sess
		}
		b.setDegraded(true)
		b.log.Warn("recognition reopen failed", "attempt", attempt, "error", err)
		select {
		case <-b.done:
			return nil
		case <-time.After(b.cfg.ReopenBackoff):
		}
	}
}

func (b *Bridge) setDegraded(degraded bool) {
	if b.cfg.OnDegraded != nil {
		b.cfg.OnDegraded(degraded)
	}
}
