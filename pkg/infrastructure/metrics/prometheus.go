package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netcheck"

// Source provides a snapshot of the diagnostic counters
type Source interface {
	GetMetrics() *entity.Metrics
}

// Exporter exports diagnostic metrics to Prometheus
type Exporter struct {
	registry *prometheus.Registry
	probes   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewExporter registers the collectors for source on a dedicated registry
func NewExporter(source Source) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "TCP connection attempts by address family and result.",
		}, []string{"family", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Elapsed time of TCP connection attempts.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"family"}),
	}

	outcomes := map[string]func(*entity.Metrics) int64{
		"completed":    func(m *entity.Metrics) int64 { return m.Completed },
		"unauthorized": func(m *entity.Metrics) int64 { return m.Unauthorized },
		"rate_limited": func(m *entity.Metrics) int64 { return m.RateLimited },
		"invalid":      func(m *entity.Metrics) int64 { return m.Invalid },
		"unavailable":  func(m *entity.Metrics) int64 { return m.Unavailable },
	}
	for outcome, read := range outcomes {
		e.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Diagnostic requests by outcome.",
			ConstLabels: prometheus.Labels{"outcome": outcome},
		}, func() float64 { return float64(read(source.GetMetrics())) }))
	}

	e.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ping_runs_total",
			Help:      "Shell ping invocations.",
		}, func() float64 { return float64(source.GetMetrics().PingRuns) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_clients",
			Help:      "Approximate number of distinct clients seen.",
		}, func() float64 { return float64(source.GetMetrics().UniqueClients) }),
		e.probes,
		e.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// OnProbesStarted implements application.ProbeObserver
func (e *Exporter) OnProbesStarted(host string, total int) {}

// OnProbeFinished implements application.ProbeObserver
func (e *Exporter) OnProbeFinished(result entity.ProbeResult) {
	family := string(result.Address.Family)
	outcome := "failure"
	if result.Succeeded {
		outcome = "success"
	}
	e.probes.WithLabelValues(family, outcome).Inc()
	e.latency.WithLabelValues(family).Observe(result.ElapsedSeconds)
}

// Registry returns the registry backing the exporter
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve starts a web server exposing /metrics on addr until ctx is done
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
