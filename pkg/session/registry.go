package session

import "sync"

// Registry tracks every live session and doubles as the shutdown barrier
// from spec.md §4.8: the operator's shutdown sequence cancels every
// session, then blocks on WaitEmpty until the last one has deregistered.
// Grounded on original_source/server.c's global thread list and the
// sv_ctrl mutex/condition pair that main waits on during delete_all.
type Registry struct {
	mu        sync.Mutex
	cond      *sync.Cond
	clients   map[*Session]struct{}
	accepting bool
}

// NewRegistry returns an empty registry, open to new sessions.
func NewRegistry() *Registry {
	r := &Registry{clients: make(map[*Session]struct{}), accepting: true}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// StopAccepting is shutdown step 1 (spec.md §4.8): it closes the registry to
// new sessions. Grounded on original_source/server.c's stop_accepting flag,
// checked by run_client before it appends itself to thread_list_head. A
// register call that races with StopAccepting is ordered by the shared
// mutex: it either registers first (and is then reached by CancelAll and
// WaitEmpty) or is refused.
func (r *Registry) StopAccepting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepting = false
}

// register adds s to the live set and reports whether it succeeded. It
// fails once StopAccepting has run, so a session that was constructed just
// before shutdown began never gets a chance to touch the index.
func (r *Registry) register(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting {
		return false
	}
	r.clients[s] = struct{}{}
	return true
}

func (r *Registry) deregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, s)
	if len(r.clients) == 0 {
		r.cond.Broadcast()
	}
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CancelAll requests cancellation of every registered session's context. It
// does not wait for them to finish; pair with WaitEmpty for that.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.clients {
		s.cancel()
	}
}

// WaitEmpty blocks until no session is registered.
func (r *Registry) WaitEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.clients) > 0 {
		r.cond.Wait()
	}
}
