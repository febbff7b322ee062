// Package session owns one client's lifecycle from accept to disconnect:
// registering with the Registry, looping command/response pairs through the
// interpreter, respecting the PauseGate, and deregistering on the way out
// no matter which exit path was taken. Grounded on
// original_source/server.c's run_client and thread_cleanup.
package session

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/leishu-qiu/kvlined/pkg/interpreter"
	"github.com/leishu-qiu/kvlined/pkg/kvindex"
)

// conn is the subset of transport.Conn a session needs. Accepting the
// interface instead of the concrete type keeps this package testable
// without a real socket.
type conn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(s string) error
	Close() error
}

// Recorder receives session lifecycle and command events for observability.
// A nil Recorder is valid; every method on it is only called through a
// nil-check.
type Recorder interface {
	SessionRegistered()
	SessionDeregistered()
	CommandHandled(op interpreter.Op)
}

// Session runs one client connection's command loop.
type Session struct {
	id       ksuid.KSUID
	conn     conn
	ctx      context.Context
	cancel   context.CancelFunc
	registry *Registry
	gate     *PauseGate
	idx      *kvindex.Index
	rec      Recorder
}

// New derives a session from parent, scoped to its own cancellable context
// so CancelAll can tear down one session without affecting its siblings.
func New(parent context.Context, c conn, idx *kvindex.Index, gate *PauseGate, registry *Registry, rec Recorder) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:       ksuid.New(),
		conn:     c,
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		gate:     gate,
		idx:      idx,
		rec:      rec,
	}
}

// ID returns the session's identifier. It has no effect on the wire protocol,
// and this package writes no log lines of its own.
func (s *Session) ID() string {
	return s.id.String()
}

// Serve registers the session, runs its command loop until the connection
// closes or the session's context is cancelled, and always deregisters and
// closes the connection before returning. If the registry has already
// stopped accepting new sessions (shutdown has begun), Serve closes the
// connection and returns immediately without touching the index.
func (s *Session) Serve() {
	if !s.registry.register(s) {
		s.conn.Close()
		return
	}
	if s.rec != nil {
		s.rec.SessionRegistered()
	}
	defer s.teardown()

	for {
		line, err := s.conn.ReadLine(s.ctx)
		if err != nil {
			return
		}

		if err := s.gate.Wait(s.ctx); err != nil {
			return
		}

		resp, op := interpreter.Interpret(s.ctx, line, s.idx)
		if s.rec != nil {
			s.rec.CommandHandled(op)
		}

		// A session cancelled mid-command (e.g. during a long batch file)
		// is already being torn down elsewhere; don't write to a connection
		// whose reader may already have been closed out from under it.
		if s.ctx.Err() != nil {
			return
		}

		if err := s.conn.WriteLine(resp); err != nil {
			return
		}
	}
}

func (s *Session) teardown() {
	s.registry.deregister(s)
	if s.rec != nil {
		s.rec.SessionDeregistered()
	}
	s.conn.Close()
}
