// Package metrics exposes server health and activity over HTTP, separate
// from the line-protocol TCP listener, per spec.md §11.2. Grounded on the
// teacher's pkg/api: a promauto-registered metric set plus a chi router
// wired with the same logging/recovery/CORS middleware stack.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leishu-qiu/kvlined/pkg/interpreter"
	"github.com/leishu-qiu/kvlined/pkg/session"
)

// Registry wraps the server's Prometheus metrics and implements
// session.Recorder so the session package needs no knowledge of Prometheus.
// It carries its own *prometheus.Registry rather than registering into the
// global default, so a process (or test binary) can construct more than
// one without a duplicate-registration panic.
type Registry struct {
	reg *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	commandsTotal  *prometheus.CounterVec
	paused         prometheus.Gauge
}

// New creates a fresh metrics registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kv_sessions_active",
			Help: "Number of client sessions currently connected.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kv_sessions_total",
			Help: "Total number of client sessions accepted since startup.",
		}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kv_commands_total",
			Help: "Total number of commands interpreted, by verb.",
		}, []string{"op"}),
		paused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kv_paused",
			Help: "1 if the server is currently paused by the operator, 0 otherwise.",
		}),
	}
}

// SessionRegistered implements session.Recorder.
func (r *Registry) SessionRegistered() {
	r.sessionsActive.Inc()
	r.sessionsTotal.Inc()
}

// SessionDeregistered implements session.Recorder.
func (r *Registry) SessionDeregistered() {
	r.sessionsActive.Dec()
}

// CommandHandled implements session.Recorder.
func (r *Registry) CommandHandled(op interpreter.Op) {
	r.commandsTotal.WithLabelValues(string(op)).Inc()
}

// SetPaused reflects the operator pause gate's current state.
func (r *Registry) SetPaused(paused bool) {
	if paused {
		r.paused.Set(1)
		return
	}
	r.paused.Set(0)
}

var _ session.Recorder = (*Registry)(nil)

// Serve runs the /healthz and /metrics HTTP surface on addr until ctx is
// cancelled, at which point it shuts the server down gracefully. An empty
// addr means the surface is disabled (spec.md §10.1's default); Serve then
// does nothing but wait for ctx to be cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
