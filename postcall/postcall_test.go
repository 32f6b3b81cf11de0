package postcall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cadencevoice/callpipe/session"
)

func TestFinalizeProcessesAndReleases(t *testing.T) {
	reg := session.NewRegistry()
	st := reg.Get("CA1")
	st.SetLeadID("lead-7")
	st.AppendTranscript(session.SpeakerAI, "hello")
	st.AppendTranscript(session.SpeakerLead, "hi, I'm calling about the listing")
	st.MergeExtractedData(map[string]string{"name": "Jordan"})

	var got Summary
	r := NewRunner(reg, ProcessorFunc(func(ctx context.Context, sum Summary) error {
		got = sum
		return nil
	}), nil)

	end := time.Now()
	if err := r.Finalize(context.Background(), "CA1", end, 90*time.Second); err != nil {
		t.Fatal(err)
	}

	if got.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %q", got.Outcome)
	}
	if got.LeadID != "lead-7" || got.Duration != 90*time.Second {
		t.Errorf("summary = %+v", got)
	}
	if got.Extracted["name"] != "Jordan" {
		t.Errorf("extracted = %v", got.Extracted)
	}
	if reg.Len() != 0 {
		t.Error("session not released after processing")
	}
}

func TestFinalizeKeepsSessionOnProcessorError(t *testing.T) {
	reg := session.NewRegistry()
	reg.Get("CA1").AppendTranscript(session.SpeakerLead, "hello")

	r := NewRunner(reg, ProcessorFunc(func(ctx context.Context, sum Summary) error {
		return errors.New("crm outage")
	}), nil)

	if err := r.Finalize(context.Background(), "CA1", time.Now(), time.Minute); err == nil {
		t.Fatal("expected error")
	}
	if reg.Len() != 1 {
		t.Error("session must survive a processing failure for retry")
	}
	st, _ := reg.Peek("CA1")
	if st.TranscriptProcessed() {
		t.Error("transcript must not be marked processed on failure")
	}
}

func TestFinalizeUnknownCall(t *testing.T) {
	r := NewRunner(session.NewRegistry(), nil, nil)
	if err := r.Finalize(context.Background(), "CA404", time.Now(), 0); err == nil {
		t.Error("expected error for unknown call")
	}
}

func TestClassifyOutcomes(t *testing.T) {
	if got := classify(nil); got != OutcomeImmediateHangup {
		t.Errorf("empty transcript: %q", got)
	}

	aiOnly := []session.TranscriptEntry{{Speaker: session.SpeakerAI, Text: "hello?"}}
	if got := classify(aiOnly); got != OutcomeOneSided {
		t.Errorf("ai-only transcript: %q", got)
	}

	both := append(aiOnly, session.TranscriptEntry{Speaker: session.SpeakerLead, Text: "hi"})
	if got := classify(both); got != OutcomeCompleted {
		t.Errorf("two-sided transcript: %q", got)
	}
}

func TestChainStopsAtFirstError(t *testing.T) {
	var calls []string
	ok := ProcessorFunc(func(ctx context.Context, sum Summary) error {
		calls = append(calls, "ok")
		return nil
	})
	boom := ProcessorFunc(func(ctx context.Context, sum Summary) error {
		calls = append(calls, "boom")
		return errors.New("boom")
	})
	never := ProcessorFunc(func(ctx context.Context, sum Summary) error {
		calls = append(calls, "never")
		return nil
	})

	err := Chain{ok, boom, never}.Process(context.Background(), Summary{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 2 || calls[1] != "boom" {
		t.Errorf("calls = %v", calls)
	}
}
