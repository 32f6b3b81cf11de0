package session

import "sync"

// Registry maps call SIDs to their State. Lookups lazily create state so the
// media stream, the status webhook, and the post-call pipeline can arrive in
// any order.
type Registry struct {
	mu    sync.Mutex
	calls map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*State)}
}

// Get returns the state for callSID, creating it on first use.
func (r *Registry) Get(callSID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.calls[callSID]
	if !ok {
		st = NewState(callSID)
		r.calls[callSID] = st
	}
	return st
}

// Peek returns the state for callSID without creating it.
func (r *Registry) Peek(callSID string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.calls[callSID]
	return st, ok
}

// Release removes the call once it has both ended and had its transcript
// processed. It reports whether the entry was removed.
func (r *Registry) Release(callSID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.calls[callSID]
	if !ok {
		return false
	}
	if !st.Ended() || !st.TranscriptProcessed() {
		return false
	}
	st.CancelTimers()
	delete(r.calls, callSID)
	return true
}

// Len reports the number of tracked calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
