// Package elevenlabs provides an ElevenLabs TTS provider implementation over
// the streaming synthesis endpoint.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cadencevoice/callpipe/internal/httpclient"
	"github.com/cadencevoice/callpipe/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_turbo_v2_5"
	defaultVoice   = "21m00Tcm4TlvDq8ikWAM" // Rachel
)

// WellKnownVoices maps friendly names to voice IDs.
var WellKnownVoices = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"adam":   "pNInz6obpgDQGcFmaJgB",
	"bella":  "EXAVITQu4vr4xnSDxMaL",
	"josh":   "TxGEqnHWrfWFTfGW9XjX",
	"brian":  "nPczCjzI2devNBz1zQrb",
	"sarah":  "EXAVITQu4vr4xnSDxMaL",
	"lily":   "pFZP5JQG7iQjIQuC4Bku",
	"george": "JBFqnCBsd6RMkjVDRZzb",
}

// Client is an ElevenLabs TTS provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
	voice      string
}

// Option configures an ElevenLabs client.
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

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
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

// New creates a new ElevenLabs client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		// No overall timeout: the response body streams for the length
		// of the utterance.
		httpClient: httpclient.New(httpclient.WithTimeout(0)),
		model:      defaultModel,
		voice:      defaultVoice,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize implements tts.Provider. ElevenLabs streams 16kHz PCM; the
// dispatcher downsamples and encodes for the wire.
func (c *Client) Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.AudioStream, error) {
	voiceID := c.resolveVoice(opts.Voice)
	modelID := c.resolveModel(opts.Model)
	format := c.resolveFormat(opts.Format)

	body := synthesizeRequest{
		Text:    text,
		ModelID: modelID,
	}
	if opts.Speed != 0 {
		body.VoiceSettings = &voiceSettings{Speed: opts.Speed}
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s", c.baseURL, voiceID, format.wire)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var errResp errorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs: %s", errResp.Detail.Message)
		}
		return nil, fmt.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, string(data))
	}

	stream := tts.NewAudioStream(&tts.AudioMeta{
		Format:   format.audio,
		Voice:    voiceID,
		Model:    modelID,
		Provider: "elevenlabs",
	})

	go func() {
		defer resp.Body.Close()
		defer stream.Close()

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !stream.Send(tts.AudioEvent{Type: tts.AudioEventDelta, Data: chunk, Timestamp: time.Now()}) {
					return
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.SetError(err)
				stream.Send(tts.AudioEvent{Type: tts.AudioEventError, Error: err, Timestamp: time.Now()})
				return
			}
		}
		stream.Send(tts.AudioEvent{Type: tts.AudioEventFinish, Timestamp: time.Now()})
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
		Provider:  "elevenlabs",
		Voices:    voices,
		Languages: []string{"en", "es", "fr", "de", "it", "pt", "pl", "hi", "ar", "zh", "ja", "ko"},
		Formats:   []tts.AudioFormat{tts.FormatPCM16000, tts.FormatULaw8000},
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
	// Assume it's already a voice ID
	return voice
}

// resolveModel resolves the model ID.
func (c *Client) resolveModel(model string) string {
	if model == "" {
		return c.model
	}
	return model
}

type formatSpec struct {
	wire  string
	audio tts.AudioFormat
}

// resolveFormat maps the requested format to an ElevenLabs output_format.
func (c *Client) resolveFormat(format tts.AudioFormat) formatSpec {
	switch format {
	case tts.FormatULaw8000:
		return formatSpec{wire: "ulaw_8000", audio: tts.FormatULaw8000}
	case tts.FormatPCM8000:
		return formatSpec{wire: "pcm_8000", audio: tts.FormatPCM8000}
	default:
		return formatSpec{wire: "pcm_16000", audio: tts.FormatPCM16000}
	}
}

// Request/response types

type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

type errorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}
