package session

import (
	"context"
	"sync"
)

// PauseGate is the operator "s"/"g" latch from spec.md §4.6: while paused,
// every session's command loop blocks before interpreting its next command,
// until an operator "g" resumes the gate.
//
// The C original models this with a mutex and a condition variable that
// every waiter sleeps on and the resumer broadcasts. A channel that is
// closed and replaced on each Resume gives the same broadcast-wake-all
// behavior with less ceremony, and composes directly with context
// cancellation: a session's own ctx.Done() unblocks only that session's
// Wait, without disturbing anyone else still waiting on the gate.
type PauseGate struct {
	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
}

// NewPauseGate returns a gate that starts open (not paused).
func NewPauseGate() *PauseGate {
	return &PauseGate{resumeCh: make(chan struct{})}
}

// Pause closes the gate. Sessions already blocked in Wait, and any that call
// Wait afterward, block until the next Resume.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
}

// Resume opens the gate and wakes every session currently blocked in Wait.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	old := g.resumeCh
	g.resumeCh = make(chan struct{})
	close(old)
}

// Paused reports whether the gate is currently closed.
func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is closed. It is a cancellation point: if ctx
// is done before the gate opens, Wait returns ctx.Err() instead of waiting
// for a Resume that may never come.
func (g *PauseGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		ch := g.resumeCh
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
