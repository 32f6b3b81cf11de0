// Package cartesia provides a Cartesia TTS provider implementation over the
// streaming websocket API. Cartesia can emit raw mu-law at 8kHz, so its
// output goes to the telephone wire without conversion.
package cartesia

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cadencevoice/callpipe/tts"
)

const (
	defaultBaseURL    = "wss://api.cartesia.ai"
	defaultModel      = "sonic-2"
	defaultVoice      = "a0e99841-438c-4a64-b679-ae501e7d6091"
	defaultAPIVersion = "2024-11-13"
)

// WellKnownVoices maps friendly names to voice IDs.
var WellKnownVoices = map[string]string{
	"barbershop-man":     "a0e99841-438c-4a64-b679-ae501e7d6091",
	"british-lady":       "79a125e8-cd45-4c13-8a67-188112f4dd22",
	"commercial-lady":    "c2ac25f9-ecc4-4f56-9095-651354df60c0",
	"confident-woman":    "b7d50908-b17c-442d-ad8d-810c63997ed9",
	"hannah":             "8985388c-1332-4ce7-8d55-789628aa3df4",
	"newsman":            "d46abd1d-2f52-4c3e-8e96-c33e7c10b946",
	"polite-man":         "ee7ea9f8-c0c1-498c-9f62-dc2da49e7e11",
	"sarah":              "a8a1eb38-5f15-4c1d-8722-7ac0f329727d",
	"sweet-lady":         "e3827ec5-697a-4b7c-9188-d4b7c31bb2a6",
	"young-professional": "248be419-c632-4f23-adf1-5324ed7dbf1d",
}

// Client is a Cartesia TTS provider.
type Client struct {
	apiKey     string
	baseURL    string
	dialer     *websocket.Dialer
	model      string
	voice      string
	apiVersion string
}

// Option configures a Cartesia client.
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

// WithVoice sets the default voice.
func WithVoice(voice string) Option {
	return func(c *Client) {
		c.voice = voice
	}
}

// WithAPIVersion sets the API version.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// New creates a new Cartesia client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		dialer:     websocket.DefaultDialer,
		model:      defaultModel,
		voice:      defaultVoice,
		apiVersion: defaultAPIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize implements tts.Provider.
func (c *Client) Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.AudioStream, error) {
	voiceID := c.resolveVoice(opts.Voice)
	modelID := c.model
	if opts.Model != "" {
		modelID = opts.Model
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("cartesia_version", c.apiVersion)
	reqURL := fmt.Sprintf("%s/tts/websocket?%s", c.baseURL, q.Encode())

	conn, resp, err := c.dialer.DialContext(ctx, reqURL, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("cartesia: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("cartesia: dial failed: %w", err)
	}

	req := synthesizeRequest{
		ContextID:  uuid.NewString(),
		ModelID:    modelID,
		Transcript: text,
		Voice:      voiceSpec{Mode: "id", ID: voiceID},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_mulaw",
			SampleRate: 8000,
		},
		Language: "en",
	}
	if opts.Speed != 0 {
		req.Speed = speedName(opts.Speed)
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cartesia: write request: %w", err)
	}

	stream := tts.NewAudioStream(&tts.AudioMeta{
		Format:   tts.FormatULaw8000,
		Voice:    voiceID,
		Model:    modelID,
		Provider: "cartesia",
	})

	go func() {
		defer conn.Close()
		defer stream.Close()

		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				stream.SetError(fmt.Errorf("cartesia: read: %w", err))
				stream.Send(tts.AudioEvent{Type: tts.AudioEventError, Error: stream.Err(), Timestamp: time.Now()})
				return
			}
			switch msg.Type {
			case "chunk":
				data, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					stream.SetError(fmt.Errorf("cartesia: decode chunk: %w", err))
					stream.Send(tts.AudioEvent{Type: tts.AudioEventError, Error: stream.Err(), Timestamp: time.Now()})
					return
				}
				if !stream.Send(tts.AudioEvent{Type: tts.AudioEventDelta, Data: data, Timestamp: time.Now()}) {
					return
				}
			case "done":
				stream.Send(tts.AudioEvent{Type: tts.AudioEventFinish, Timestamp: time.Now()})
				return
			case "error":
				err := fmt.Errorf("cartesia: %s", msg.Error)
				stream.SetError(err)
				stream.Send(tts.AudioEvent{Type: tts.AudioEventError, Error: err, Timestamp: time.Now()})
				return
			}
		}
	}()

	return stream, nil
}

// Capabilities implements tts.Provider.
func (c *Client) Capabilities() tts.Capabilities {
	voices := make([]tts.Voice, 0, len(WellKnownVoices))
	for name, id := range WellKnownVoices {
		voices = append(voices, tts.Voice{ID: id, Name: name, Language: "en"})
	}
	return tts.Capabilities{
		Provider:  "cartesia",
		Voices:    voices,
		Languages: []string{"en", "es", "fr", "de", "pt", "zh", "ja", "hi", "it", "ko", "nl", "pl", "ru", "sv", "tr"},
		Formats:   []tts.AudioFormat{tts.FormatULaw8000, tts.FormatPCM16000},
	}
}

// resolveVoice resolves a voice name to a voice ID.
func (c *Client) resolveVoice(voice string) string {
	if voice == "" {
		return c.voice
	}
	if id, ok := WellKnownVoices[strings.ToLower(voice)]; ok {
		return id
	}
	return voice
}

// speedName maps a numeric multiplier onto Cartesia's named speeds.
func speedName(speed float64) string {
	switch {
	case speed <= 0.8:
		return "slowest"
	case speed < 1.0:
		return "slow"
	case speed == 1.0:
		return "normal"
	case speed <= 1.2:
		return "fast"
	default:
		return "fastest"
	}
}

// Request/response types

type synthesizeRequest struct {
	ContextID    string       `json:"context_id"`
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Language     string       `json:"language,omitempty"`
	Speed        string       `json:"speed,omitempty"`
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type serverMessage struct {
	Type      string `json:"type"`
	ContextID string `json:"context_id"`
	Data      string `json:"data"`
	Error     string `json:"error"`
	Done      bool   `json:"done"`
}
