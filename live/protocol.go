// Package live runs one phone call end to end: it owns the media websocket,
// feeds inbound audio to recognition and the barge-in monitor, drives the
// turn machine, and streams synthesized replies back out.
package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Inbound event names on the media stream.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Outbound event names. Media and clear go to the carrier; transcript and
// callCompleted are relay events for monitoring clients sharing the socket.
const (
	EventClear         = "clear"
	EventTranscript    = "transcript"
	EventCallCompleted = "call_completed"
)

// Message is the wire envelope for both directions of the media stream.
type Message struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`

	// Relay fields for monitoring events.
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	CallSID string `json:"callSid,omitempty"`
}

// StartPayload carries the stream identity and call parameters.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one chunk of base64 mu-law audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload marks the end of the stream.
type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// ParseMessage decodes one inbound frame.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("media stream: parse message: %w", err)
	}
	return &msg, nil
}

// AudioBytes decodes the media payload.
func (m *Message) AudioBytes() ([]byte, error) {
	if m.Media == nil {
		return nil, fmt.Errorf("media stream: message has no media payload")
	}
	data, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("media stream: decode payload: %w", err)
	}
	return data, nil
}

// MediaMessage builds an outbound audio message.
func MediaMessage(streamSID string, ulaw []byte) *Message {
	return &Message{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(ulaw)},
	}
}

// ClearMessage builds the control message that drops the carrier's buffered
// outbound audio.
func ClearMessage(streamSID string) *Message {
	return &Message{Event: EventClear, StreamSID: streamSID}
}

// TranscriptMessage builds a monitoring relay event for one utterance.
func TranscriptMessage(callSID, speaker, text string) *Message {
	return &Message{Event: EventTranscript, CallSID: callSID, Speaker: speaker, Text: text}
}

// CallCompletedMessage builds the final relay event for a call.
func CallCompletedMessage(callSID string) *Message {
	return &Message{Event: EventCallCompleted, CallSID: callSID}
}
