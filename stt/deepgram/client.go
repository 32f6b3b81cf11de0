// Package deepgram provides a Deepgram live STT provider implementation over
// the streaming websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadencevoice/callpipe/stt"
)

const (
	defaultBaseURL = "wss://api.deepgram.com"
	defaultModel   = "nova-2-phonecall"

	// keepAliveInterval keeps the socket open while the caller is silent.
	// Deepgram closes idle streams after ~10s without audio or keepalives.
	keepAliveInterval = 5 * time.Second
)

// Client is a Deepgram live STT provider.
type Client struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
	model   string
}

// Option configures a Deepgram client.
type Option func(*Client)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Deepgram client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		dialer:  websocket.DefaultDialer,
		model:   defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open implements stt.Provider.
func (c *Client) Open(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	reqURL := fmt.Sprintf("%s/v1/listen?%s", c.baseURL, c.buildParams(cfg).Encode())

	header := http.Header{}
	header.Set("Authorization", "Token "+c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, reqURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram: dial failed: %w", err)
	}

	s := &liveSession{
		conn:   conn,
		events: make(chan stt.Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go s.keepAliveLoop()
	return s, nil
}

// Capabilities implements stt.Provider.
func (c *Client) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Provider:  "deepgram",
		Models:    []string{"nova-2-phonecall", "nova-2", "nova", "enhanced", "base"},
		Languages: []string{"en", "en-US", "en-GB", "es", "fr", "de", "it", "pt", "nl", "ja", "ko", "zh"},
		Encodings: []string{"mulaw", "linear16"},
		// Deepgram does not enforce a per-stream age limit; the bridge applies
		// its default replacement interval.
		MaxSessionDuration: 0,
	}
}

// buildParams builds URL query parameters from the session config.
func (c *Client) buildParams(cfg stt.SessionConfig) url.Values {
	params := url.Values{}

	model := cfg.Model
	if model == "" {
		model = c.model
	}
	params.Set("model", model)

	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}
	if cfg.Encoding != "" {
		params.Set("encoding", cfg.Encoding)
	}
	if cfg.SampleRate > 0 {
		params.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		params.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	}
	if cfg.InterimResults {
		params.Set("interim_results", "true")
	}
	for _, kw := range cfg.Keywords {
		params.Add("keywords", kw)
	}
	params.Set("smart_format", "true")
	params.Set("vad_events", "true")

	for k, v := range cfg.Custom {
		switch val := v.(type) {
		case string:
			params.Set(k, val)
		case bool:
			if val {
				params.Set(k, "true")
			}
		case int, int64, float64:
			params.Set(k, fmt.Sprintf("%v", val))
		}
	}

	return params
}

// liveSession is one open streaming connection.
type liveSession struct {
	conn    *websocket.Conn
	events  chan stt.Event
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

// Feed implements stt.Session.
func (s *liveSession) Feed(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return fmt.Errorf("deepgram: session closed")
	default:
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("deepgram: write audio: %w", err)
	}
	return nil
}

// Events implements stt.Session.
func (s *liveSession) Events() <-chan stt.Event {
	return s.events
}

// Close implements stt.Session. A CloseStream message asks Deepgram to flush
// any pending results before the socket drops.
func (s *liveSession) Close() error {
	s.once.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *liveSession) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop parses streaming messages into events until the connection ends.
// The events channel always closes last so consumers can range over it.
func (s *liveSession) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.emit(stt.Event{Type: stt.EventError, Err: fmt.Errorf("deepgram: read: %w", err), Timestamp: time.Now()})
			}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Results":
			s.emitResult(&msg)
		case "SpeechStarted":
			s.emit(stt.Event{Type: stt.EventSpeechBegin, Timestamp: time.Now()})
		case "UtteranceEnd":
			s.emit(stt.Event{Type: stt.EventSpeechEnd, Timestamp: time.Now()})
		}
	}
}

func (s *liveSession) emitResult(msg *liveMessage) {
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return
	}
	ev := stt.Event{
		Type:       stt.EventPartial,
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Timestamp:  time.Now(),
	}
	if msg.IsFinal {
		ev.Type = stt.EventFinal
	}
	s.emit(ev)
}

func (s *liveSession) emit(ev stt.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Deepgram streaming message types

type liveMessage struct {
	Type    string      `json:"type"`
	IsFinal bool        `json:"is_final"`
	Channel liveChannel `json:"channel"`
}

type liveChannel struct {
	Alternatives []liveAlternative `json:"alternatives"`
}

type liveAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}
