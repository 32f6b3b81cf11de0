// Package testutil provides shared mock implementations for pipeline tests.
package testutil

import (
	"context"
	"sync"

	"github.com/cadencevoice/callpipe/oracle"
	"github.com/cadencevoice/callpipe/session"
)

// MockOracle returns scripted replies in order.
type MockOracle struct {
	mu      sync.Mutex
	replies []oracle.Reply
	next    int

	// GreetingReply is returned by Greeting. Zero value yields a
	// default greeting.
	GreetingReply oracle.Reply
	// RespondErr, when set, fails every Respond call.
	RespondErr error

	respondCalls []string
	warmUps      int
}

// NewMockOracle creates an oracle that cycles through the given replies.
func NewMockOracle(replies ...oracle.Reply) *MockOracle {
	return &MockOracle{replies: replies}
}

// Greeting implements oracle.Oracle.
func (m *MockOracle) Greeting(ctx context.Context, lead session.LeadInfo) (oracle.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GreetingReply.Text != "" {
		return m.GreetingReply, nil
	}
	return oracle.Reply{Text: "Hi, how can I help?"}, nil
}

// Respond implements oracle.Oracle.
func (m *MockOracle) Respond(ctx context.Context, lead session.LeadInfo, history []session.TranscriptEntry, userText string) (oracle.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respondCalls = append(m.respondCalls, userText)
	if m.RespondErr != nil {
		return oracle.Reply{}, m.RespondErr
	}
	if len(m.replies) == 0 {
		return oracle.Reply{Text: "Understood."}, nil
	}
	reply := m.replies[m.next%len(m.replies)]
	m.next++
	return reply, nil
}

// WarmUp implements oracle.Oracle.
func (m *MockOracle) WarmUp(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmUps++
	return nil
}

// RespondCalls returns the user texts passed to Respond so far.
func (m *MockOracle) RespondCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.respondCalls))
	copy(out, m.respondCalls)
	return out
}

// WarmUps returns how many times WarmUp was called.
func (m *MockOracle) WarmUps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmUps
}
