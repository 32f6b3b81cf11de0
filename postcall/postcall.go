// Package postcall finalizes ended calls: it assembles the transcript and
// extracted data into a summary, hands it to the configured processors, and
// releases the session only after processing succeeds.
package postcall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencevoice/callpipe/session"
)

// Outcome classifies how a call concluded.
type Outcome string

const (
	// OutcomeCompleted is a normal conversation with at least one exchange.
	OutcomeCompleted Outcome = "completed"

	// OutcomeImmediateHangup is a call where the caller never said anything.
	OutcomeImmediateHangup Outcome = "immediate_hangup"

	// OutcomeOneSided is a call where only the assistant spoke.
	OutcomeOneSided Outcome = "one_sided"
)

// Summary is everything downstream systems get from a finished call.
type Summary struct {
	CallSID    string
	LeadID     string
	Inbound    bool
	Outcome    Outcome
	Transcript []session.TranscriptEntry
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
	Extracted  map[string]string
	Degraded   bool
}

// Processor consumes one finished call.
type Processor interface {
	Process(ctx context.Context, sum Summary) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, sum Summary) error

func (f ProcessorFunc) Process(ctx context.Context, sum Summary) error {
	return f(ctx, sum)
}

// Chain runs processors in order, stopping at the first error.
type Chain []Processor

func (c Chain) Process(ctx context.Context, sum Summary) error {
	for _, p := range c {
		if err := p.Process(ctx, sum); err != nil {
			return err
		}
	}
	return nil
}

// LogProcessor records the summary to the structured log. It is the default
// processor when nothing else is configured.
type LogProcessor struct {
	Log *slog.Logger
}

func (p LogProcessor) Process(ctx context.Context, sum Summary) error {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("call summary",
		"call_sid", sum.CallSID,
		"lead_id", sum.LeadID,
		"outcome", string(sum.Outcome),
		"duration", sum.Duration,
		"turns", len(sum.Transcript),
		"extracted_fields", len(sum.Extracted),
		"degraded", sum.Degraded,
	)
	return nil
}

// Runner finalizes calls against the session registry.
type Runner struct {
	registry  *session.Registry
	processor Processor
	log       *slog.Logger
}

// NewRunner creates a Runner. A nil processor falls back to LogProcessor.
func NewRunner(registry *session.Registry, processor Processor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if processor == nil {
		processor = LogProcessor{Log: log}
	}
	return &Runner{registry: registry, processor: processor, log: log}
}

// Finalize marks the call ended, runs the processors, and releases the
// session. The registry entry survives a processing failure so a retry can
// still reach the transcript.
func (r *Runner) Finalize(ctx context.Context, callSID string, endedAt time.Time, duration time.Duration) error {
	st, ok := r.registry.Peek(callSID)
	if !ok {
		return fmt.Errorf("postcall: unknown call %s", callSID)
	}

	if !st.Ended() {
		st.MarkEnded(endedAt, duration)
	}
	st.CancelTimers()

	sum := buildSummary(st)
	if err := r.processor.Process(ctx, sum); err != nil {
		return fmt.Errorf("postcall: process %s: %w", callSID, err)
	}

	st.SetTranscriptProcessed(true)
	st.SetNotifyCompleted(true)
	r.registry.Release(callSID)
	return nil
}

func buildSummary(st *session.State) Summary {
	transcript := st.Transcript()
	return Summary{
		CallSID:    st.CallSID(),
		LeadID:     st.LeadID(),
		Inbound:    st.Inbound(),
		Outcome:    classify(transcript),
		Transcript: transcript,
		StartedAt:  st.StartTime(),
		EndedAt:    st.EndTime(),
		Duration:   st.Duration(),
		Extracted:  st.ExtractedData(),
		Degraded:   st.Degraded(),
	}
}

// classify derives the outcome from who actually spoke.
func classify(transcript []session.TranscriptEntry) Outcome {
	if len(transcript) == 0 {
		return OutcomeImmediateHangup
	}
	for _, e := range transcript {
		if e.Speaker == session.SpeakerLead {
			return OutcomeCompleted
		}
	}
	return OutcomeOneSided
}
