package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticSource struct {
	metrics entity.Metrics
}

func (s *staticSource) GetMetrics() *entity.Metrics {
	m := s.metrics
	return &m
}

func TestExporter_RequestCounters(t *testing.T) {
	source := &staticSource{metrics: entity.Metrics{Completed: 4, RateLimited: 2, PingRuns: 1, UniqueClients: 3}}
	exporter := NewExporter(source)

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`netcheck_requests_total{outcome="completed"} 4`,
		`netcheck_requests_total{outcome="rate_limited"} 2`,
		`netcheck_requests_total{outcome="unauthorized"} 0`,
		`netcheck_ping_runs_total 1`,
		`netcheck_unique_clients 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}

	source.metrics.Completed = 5
	rec = httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `netcheck_requests_total{outcome="completed"} 5`) {
		t.Error("counter funcs should read the live snapshot")
	}
}

func TestExporter_ProbeObserver(t *testing.T) {
	exporter := NewExporter(&staticSource{})

	exporter.OnProbesStarted("example.com", 3)
	exporter.OnProbeFinished(entity.ProbeResult{Address: entity.ResolvedAddress{IP: "192.0.2.1", Family: entity.IPv4}, Succeeded: true, ElapsedSeconds: 0.02})
	exporter.OnProbeFinished(entity.ProbeResult{Address: entity.ResolvedAddress{IP: "192.0.2.2", Family: entity.IPv4}, ElapsedSeconds: 1})
	exporter.OnProbeFinished(entity.ProbeResult{Address: entity.ResolvedAddress{IP: "2001:db8::1", Family: entity.IPv6}, ElapsedSeconds: 1})

	tests := []struct {
		family, result string
		want           float64
	}{
		{"IPv4", "success", 1},
		{"IPv4", "failure", 1},
		{"IPv6", "failure", 1},
		{"IPv6", "success", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(exporter.probes.WithLabelValues(tt.family, tt.result)); got != tt.want {
			t.Errorf("probes_total{%s,%s} = %v, want %v", tt.family, tt.result, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(exporter.latency); n != 2 {
		t.Errorf("latency series = %d, want 2", n)
	}
}
