// Package metrics defines lltop's Prometheus instrumentation: sampler
// ticks processed, clients evicted on a negative delta, resolver cache
// hits/misses, and fan-out child exec failures.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every counter lltop exports, all registered against a
// private registry so repeated construction in tests never panics on a
// duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	SamplerTicks     prometheus.Counter
	ClientsEvicted   prometheus.Counter
	ResolverCacheHit *prometheus.CounterVec
	FanOutExecFail   prometheus.Counter
}

// New constructs a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SamplerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "lltop_sampler_ticks_total",
			Help: "Generational sampler ticks processed.",
		}),
		ClientsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lltop_clients_evicted_total",
			Help: "Clients skipped for a tick due to a negative delta (export recreated).",
		}),
		ResolverCacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lltop_resolver_cache_total",
			Help: "Host/job resolver cache lookups, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FanOutExecFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "lltop_fanout_exec_failures_total",
			Help: "Remote fan-out children that failed to start.",
		}),
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
