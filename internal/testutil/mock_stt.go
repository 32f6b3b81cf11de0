package testutil

import (
	"context"
	"sync"

	"github.com/cadencevoice/callpipe/stt"
)

// MockSTTSession is a scriptable live recognition session.
type MockSTTSession struct {
	mu     sync.Mutex
	fed    [][]byte
	events chan stt.Event
	closed bool
}

// NewMockSTTSession creates a session with a buffered event channel.
func NewMockSTTSession() *MockSTTSession {
	return &MockSTTSession{events: make(chan stt.Event, 64)}
}

// Feed implements stt.Session.
func (s *MockSTTSession) Feed(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.fed = append(s.fed, cp)
	return nil
}

// Events implements stt.Session.
func (s *MockSTTSession) Events() <-chan stt.Event {
	return s.events
}

// Close implements stt.Session.
func (s *MockSTTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// EmitFinal pushes a final transcript event into the session.
func (s *MockSTTSession) EmitFinal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- stt.Event{Type: stt.EventFinal, Text: text, Confidence: 0.95}
}

// EmitPartial pushes an interim transcript event into the session.
func (s *MockSTTSession) EmitPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- stt.Event{Type: stt.EventPartial, Text: text}
}

// FedFrames returns a copy of every frame fed so far.
func (s *MockSTTSession) FedFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.fed))
	copy(out, s.fed)
	return out
}

// MockSTTProvider hands out MockSTTSessions in order.
type MockSTTProvider struct {
	mu       sync.Mutex
	sessions []*MockSTTSession
	OpenErr  error
}

// NewMockSTT creates a provider with no scripted failures.
func NewMockSTT() *MockSTTProvider {
	return &MockSTTProvider{}
}

// Open implements stt.Provider.
func (p *MockSTTProvider) Open(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	sess := NewMockSTTSession()
	p.mu.Lock()
	p.sessions = append(p.sessions, sess)
	p.mu.Unlock()
	return sess, nil
}

// Capabilities implements stt.Provider.
func (p *MockSTTProvider) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Provider:  "mock",
		Models:    []string{"default"},
		Languages: []string{"en"},
		Encodings: []string{"mulaw"},
	}
}

// Sessions returns every session opened so far.
func (p *MockSTTProvider) Sessions() []*MockSTTSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*MockSTTSession, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// LastSession returns the most recently opened session, or nil.
func (p *MockSTTProvider) LastSession() *MockSTTSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}
