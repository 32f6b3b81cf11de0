// Package oracle generates the assistant's side of the conversation. The
// pipeline treats it as an external collaborator: text in, spoken reply plus
// optional structured data out.
package oracle

import (
	"context"
	"sync"

	"github.com/cadencevoice/callpipe/session"
)

// Reply is one generated assistant utterance.
type Reply struct {
	// Text is the spoken reply with all control markup stripped.
	Text string

	// Data holds structured fields the model extracted from the caller
	// (name, email, phone, preferences), already cleaned for storage.
	Data map[string]string

	// EndCall is set when the model signals the conversation is complete.
	EndCall bool
}

// Oracle produces assistant utterances for a call.
type Oracle interface {
	// Greeting generates the opening utterance for an inbound call.
	Greeting(ctx context.Context, lead session.LeadInfo) (Reply, error)

	// Respond generates the reply to one finalized caller utterance, given
	// the conversation so far.
	Respond(ctx context.Context, lead session.LeadInfo, history []session.TranscriptEntry, userText string) (Reply, error)

	// WarmUp primes the underlying connection so the first real turn does not
	// pay connection setup latency. Errors are advisory.
	WarmUp(ctx context.Context) error
}

// fallbackLines are spoken verbatim when generation fails outright. The call
// keeps moving rather than going silent.
var fallbackLines = []string{
	"I'm sorry, I didn't quite catch that. Could you say that again?",
	"Apologies, I'm having a little trouble hearing you. Could you repeat that?",
	"Sorry about that. Would you mind saying that one more time?",
}

var (
	fallbackMu  sync.Mutex
	fallbackIdx int
)

// Fallback returns the next scripted apology, rotating through the set so
// repeated failures do not repeat the same line back to back.
func Fallback() Reply {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	line := fallbackLines[fallbackIdx%len(fallbackLines)]
	fallbackIdx++
	return Reply{Text: line}
}
