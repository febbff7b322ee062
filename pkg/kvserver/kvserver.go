// Package kvserver wires together the index, session registry, pause gate,
// config, and metrics into one dependency-injection-style Context, and
// drives the orderly startup/shutdown sequence from spec.md §4.8. Grounded
// on the teacher's pkg/di.Container (the same "bundle the app's
// dependencies behind one struct instead of package globals" shape) and
// original_source/server.c's main.
package kvserver

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/leishu-qiu/kvlined/pkg/config"
	"github.com/leishu-qiu/kvlined/pkg/kvindex"
	"github.com/leishu-qiu/kvlined/pkg/metrics"
	"github.com/leishu-qiu/kvlined/pkg/operator"
	"github.com/leishu-qiu/kvlined/pkg/session"
	"github.com/leishu-qiu/kvlined/pkg/signalreactor"
	"github.com/leishu-qiu/kvlined/pkg/transport"
)

// Context bundles every dependency the running server needs, built once at
// startup and threaded through instead of living as package-level state.
type Context struct {
	Config   *config.Config
	Index    *kvindex.Index
	Registry *session.Registry
	Gate     *session.PauseGate
	Metrics  *metrics.Registry
}

// New constructs a Context from cfg.
func New(cfg *config.Config) *Context {
	return &Context{
		Config:   cfg,
		Index:    kvindex.New(cfg.FieldLimit),
		Registry: session.NewRegistry(),
		Gate:     session.NewPauseGate(),
		Metrics:  metrics.New(),
	}
}

// Run starts the TCP listener, the metrics HTTP surface, and the signal
// reactor, then blocks running the operator loop over operatorIn until EOF,
// at which point it performs the shutdown sequence: stop accepting
// connections, cancel every session, wait for them to drain, and tear down
// the index. Production callers pass os.Stdin for operatorIn.
func Run(ctx context.Context, port int, kc *Context, operatorIn io.Reader) error {
	ln, err := transport.Listen(port)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	metricsDone := make(chan error, 1)
	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	go func() { metricsDone <- kc.Metrics.Serve(metricsCtx, kc.Config.MetricsAddr) }()

	reactor := signalreactor.Start(ctx, kc.Registry)

	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- transport.Run(ln, func(c *transport.Conn) {
			s := session.New(ctx, c, kc.Index, kc.Gate, kc.Registry, kc.Metrics)
			s.Serve()
		})
	}()

	err = operator.Run(operatorIn, operator.Hooks{
		Index: kc.Index,
		Gate:  kc.Gate,
		Out:   os.Stdout,
		Rec:   kc.Metrics,
	})
	if err != nil {
		log.Printf("operator loop: %v", err)
	}

	// Orderly shutdown, in the exact order spec.md §4.8 lists: flag first so
	// any session already constructed but not yet registered exits on its
	// own, then cancel-all, then wait for the registry to drain, then
	// destroy the index, and only then tear down the listener and signal
	// reactor. This mirrors original_source/server.c's main: stop_accepting
	// = 1, delete_all(), the sv_ctrl barrier wait, db_cleanup, and only
	// afterward pthread_cancel(listener)/pthread_join.
	kc.Registry.StopAccepting()
	kc.Registry.CancelAll()
	kc.Registry.WaitEmpty()
	kc.Index.Destroy()

	ln.Close()
	<-acceptDone
	reactor.Stop()
	cancelMetrics()
	<-metricsDone

	return nil
}
