// Package signalreactor masks SIGPIPE for the process and cancels every
// live session on SIGINT, the Go analogue of original_source/server.c's
// sig_handler_constructor/monitor_signal pairing (the original parks a
// dedicated thread on sigwait; Go has no sigwait, so the idiomatic
// equivalent is a goroutine fed by signal.Notify).
package signalreactor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leishu-qiu/kvlined/pkg/session"
)

// Reactor owns the process-wide signal channel and the goroutine watching
// it.
type Reactor struct {
	ch     chan os.Signal
	stopCh chan struct{}
	done   chan struct{}
}

// Start masks SIGPIPE (a client that closes its socket must surface as a
// write error, never terminate the process) and begins watching for SIGINT,
// cancelling every session in registry on every delivery (mirroring
// monitor_signal's `while (1) { sigwait(...); ... }`, not just the first
// one). Stop ends the watch; ctx additionally ends it if cancelled first.
func Start(ctx context.Context, registry *session.Registry) *Reactor {
	signal.Ignore(syscall.SIGPIPE)

	r := &Reactor{
		ch:     make(chan os.Signal, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	signal.Notify(r.ch, syscall.SIGINT)

	go func() {
		defer close(r.done)
		for {
			select {
			case <-r.ch:
				fmt.Println("SIGINT received, cancelling all clients")
				registry.CancelAll()
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
		}
	}()
	return r
}

// Stop stops watching for SIGINT and waits for the reactor goroutine to
// exit.
func (r *Reactor) Stop() {
	signal.Stop(r.ch)
	close(r.stopCh)
	<-r.done
}
