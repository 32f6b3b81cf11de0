package live

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParseStartMessage(t *testing.T) {
	raw := `{"event":"start","streamSid":"MZ1","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"lead_id":"42","direction":"inbound"}}}`
	msg, err := ParseMessage([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Event != EventStart {
		t.Errorf("Event = %q", msg.Event)
	}
	if msg.Start.CallSID != "CA1" || msg.Start.StreamSID != "MZ1" {
		t.Errorf("start payload = %+v", msg.Start)
	}
	if msg.Start.CustomParameters["lead_id"] != "42" {
		t.Errorf("custom parameters = %v", msg.Start.CustomParameters)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	audio := []byte{0x7f, 0x00, 0xff, 0x80}
	out := MediaMessage("MZ1", audio)

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	got, err := msg.AudioBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(audio) {
		t.Errorf("payload round trip: %v != %v", got, audio)
	}
	if msg.StreamSID != "MZ1" {
		t.Errorf("StreamSID = %q", msg.StreamSID)
	}
}

func TestAudioBytesRejectsNonMedia(t *testing.T) {
	msg := &Message{Event: EventStop}
	if _, err := msg.AudioBytes(); err == nil {
		t.Error("expected error for message without media")
	}

	msg = &Message{Event: EventMedia, Media: &MediaPayload{Payload: "not base64!!"}}
	if _, err := msg.AudioBytes(); err == nil {
		t.Error("expected error for bad base64")
	}
}

func TestClearMessageShape(t *testing.T) {
	data, err := json.Marshal(ClearMessage("MZ9"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if raw["event"] != "clear" || raw["streamSid"] != "MZ9" {
		t.Errorf("clear message = %v", raw)
	}
	if _, ok := raw["media"]; ok {
		t.Error("clear message must not carry media")
	}
}

func TestTranscriptMessage(t *testing.T) {
	msg := TranscriptMessage("CA1", "lead", "hello")
	if msg.Event != EventTranscript || msg.Speaker != "lead" || msg.Text != "hello" {
		t.Errorf("message = %+v", msg)
	}
}

func TestMediaPayloadIsBase64(t *testing.T) {
	msg := MediaMessage("MZ1", []byte{1, 2, 3})
	if _, err := base64.StdEncoding.DecodeString(msg.Media.Payload); err != nil {
		t.Errorf("payload not base64: %v", err)
	}
}
