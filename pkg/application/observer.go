package application

import "github.com/WangYihang/netcheck/pkg/domain/entity"

// MetricsObserver observes metrics changes
type MetricsObserver interface {
	OnMetricsUpdate(metrics *entity.Metrics)
	AddTarget(target string) // Notify when a diagnostic run completes
}

// ProbeObserver observes the probes of a diagnostic run
type ProbeObserver interface {
	OnProbesStarted(host string, total int)
	OnProbeFinished(result entity.ProbeResult)
}
