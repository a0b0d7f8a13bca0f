package application

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/netcheck/pkg/common"
	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/repository"
	"github.com/WangYihang/netcheck/pkg/domain/service"
	"golang.org/x/sync/errgroup"
)

const (
	// PathDisclosureNote is appended to every report
	PathDisclosureNote = "Results reflect the network path from this server, not from your device."
	// PingHintNote explains an empty or failed ping
	PingHintNote = "No response or command failed. Ensure the target is reachable and that this server allows outgoing ping (ICMP)."

	maxRecentTargets = 20
)

// DiagnoseUseCase runs one authenticated, rate-limited diagnostic request
type DiagnoseUseCase struct {
	config Config

	// Services
	authenticator service.Authenticator
	limiter       service.RateLimiter
	validator     service.RequestValidator
	resolver      service.DNSResolver
	prober        service.ConnectivityProber
	pinger        service.PingRunner

	// Repositories
	clients repository.ClientFilter

	logger *slog.Logger

	// State
	metrics          *entity.Metrics
	metricsLock      sync.RWMutex
	metricsObservers []MetricsObserver
	probeObservers   []ProbeObserver
}

// Config holds the use case configuration
type Config struct {
	// PingEnabled is the deployment feature flag for shell ping
	PingEnabled bool
}

// Dependencies groups the collaborators of the use case; Pinger and Clients may be nil
type Dependencies struct {
	Authenticator service.Authenticator
	Limiter       service.RateLimiter
	Validator     service.RequestValidator
	Resolver      service.DNSResolver
	Prober        service.ConnectivityProber
	Pinger        service.PingRunner
	Clients       repository.ClientFilter
	Logger        *slog.Logger
}

// NewDiagnoseUseCase creates a new diagnose use case
func NewDiagnoseUseCase(config Config, deps Dependencies) *DiagnoseUseCase {
	if deps.Pinger == nil {
		config.PingEnabled = false
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &DiagnoseUseCase{
		config:        config,
		authenticator: deps.Authenticator,
		limiter:       deps.Limiter,
		validator:     deps.Validator,
		resolver:      deps.Resolver,
		prober:        deps.Prober,
		pinger:        deps.Pinger,
		clients:       deps.Clients,
		logger:        deps.Logger,
		metrics:       &entity.Metrics{StartTime: time.Now()},
	}
}

// RegisterMetricsObserver registers a metrics observer
func (uc *DiagnoseUseCase) RegisterMetricsObserver(observer MetricsObserver) {
	uc.metricsObservers = append(uc.metricsObservers, observer)
}

// RegisterProbeObserver registers a probe observer
func (uc *DiagnoseUseCase) RegisterProbeObserver(observer ProbeObserver) {
	uc.probeObservers = append(uc.probeObservers, observer)
}

// PingEnabled reports whether shell ping is available in this deployment
func (uc *DiagnoseUseCase) PingEnabled() bool {
	return uc.config.PingEnabled
}

// Authenticate reports whether creds are accepted
func (uc *DiagnoseUseCase) Authenticate(creds *entity.Credentials) bool {
	return uc.authenticator != nil && uc.authenticator.Authenticate(creds)
}

// Validate parses a raw request without authentication or rate limiting, for local use
func (uc *DiagnoseUseCase) Validate(raw entity.RawRequest) (*entity.DiagnosticRequest, error) {
	return uc.validator.Validate(raw, uc.config.PingEnabled)
}

// Handle authenticates, admits and validates a raw request, then runs the diagnostic
func (uc *DiagnoseUseCase) Handle(ctx context.Context, raw entity.RawRequest, creds *entity.Credentials, clientKey string) (*entity.DiagnosticReport, error) {
	start := time.Now()
	atomic.AddInt64(&uc.metrics.Requests, 1)
	defer uc.notifyMetricsObservers()

	logger := uc.logger.With("client", shortKey(clientKey))

	if !uc.Authenticate(creds) {
		atomic.AddInt64(&uc.metrics.Unauthorized, 1)
		logger.Warn("request rejected", "reason", "unauthorized")
		return nil, entity.ErrUnauthorized
	}

	decision, err := uc.limiter.Admit(ctx, clientKey)
	if err != nil {
		atomic.AddInt64(&uc.metrics.Unavailable, 1)
		logger.Error("rate limiter failed, denying request", "error", err)
		return nil, entity.ErrRateLimiterUnavailable
	}
	uc.trackClient(clientKey)
	if !decision.Allowed {
		atomic.AddInt64(&uc.metrics.RateLimited, 1)
		logger.Warn("request rejected", "reason", "rate limited", "count", decision.Count, "retry_after", decision.RetryAfter)
		return nil, &entity.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	req, err := uc.validator.Validate(raw, uc.config.PingEnabled)
	if err != nil {
		atomic.AddInt64(&uc.metrics.Invalid, 1)
		logger.Info("request rejected", "reason", "invalid", "error", err)
		return nil, err
	}

	// An admitted request runs to completion or to its own timeouts
	report := uc.Diagnose(context.WithoutCancel(ctx), req)

	logger.Info("diagnostic completed",
		"host", req.Host,
		"port", req.Port,
		"addresses", len(report.ResolvedAddresses),
		"succeeded", report.Succeeded(),
		"ping", req.PingRequested,
		"duration", time.Since(start),
	)
	return report, nil
}

// Diagnose resolves, probes and optionally pings a validated request
func (uc *DiagnoseUseCase) Diagnose(ctx context.Context, req *entity.DiagnosticRequest) *entity.DiagnosticReport {
	report := &entity.DiagnosticReport{
		Host:           req.Host,
		Port:           req.Port,
		TimeoutSeconds: req.TimeoutSeconds,
		StartedAt:      time.Now(),
	}

	resolveCtx, cancel := context.WithTimeout(ctx, req.Timeout())
	addrs, err := uc.resolver.Resolve(resolveCtx, req.Host)
	cancel()

	targets := addrs
	if err != nil || len(addrs) == 0 {
		report.Notes = append(report.Notes, fmt.Sprintf("DNS resolution failed for %s; attempting a direct connection to the host as given.", req.Host))
		targets = []entity.ResolvedAddress{{IP: req.Host, Family: entity.Unresolved}}
		addrs = nil
	}
	report.ResolvedAddresses = addrs
	if report.ResolvedAddresses == nil {
		report.ResolvedAddresses = []entity.ResolvedAddress{}
	}

	report.ProbeResults = uc.probeAll(ctx, req, targets)
	if report.Succeeded() == 0 {
		report.Notes = append(report.Notes, fmt.Sprintf("All TCP connection attempts failed. Check that a service is listening on port %d and that no firewall blocks it.", req.Port))
	}

	if req.PingRequested {
		uc.ping(ctx, req, report)
	}

	report.Notes = append(report.Notes, PathDisclosureNote)
	report.Duration = time.Since(report.StartedAt)

	uc.recordReport(report)
	return report
}

// probeAll probes every target concurrently and collects all results in target order
func (uc *DiagnoseUseCase) probeAll(ctx context.Context, req *entity.DiagnosticRequest, targets []entity.ResolvedAddress) []entity.ProbeResult {
	for _, observer := range uc.probeObservers {
		observer.OnProbesStarted(req.Host, len(targets))
	}

	results := make([]entity.ProbeResult, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			results[i] = uc.prober.Probe(ctx, target, req.Port, req.Timeout())
			for _, observer := range uc.probeObservers {
				observer.OnProbeFinished(results[i])
			}
			return nil
		})
	}
	g.Wait()

	return results
}

func (uc *DiagnoseUseCase) ping(ctx context.Context, req *entity.DiagnosticRequest, report *entity.DiagnosticReport) {
	if uc.pinger == nil {
		report.Notes = append(report.Notes, common.SanitizeMessage(entity.ErrPingDisabled.Error()))
		return
	}

	atomic.AddInt64(&uc.metrics.PingRuns, 1)
	out, err := uc.pinger.Run(ctx, req.Host)

	var text string
	if out != nil {
		report.PingCommand = out.Command
		text = out.Output
	}

	switch {
	case err != nil:
		uc.logger.Warn("ping failed", "host", req.Host, "error", err)
		message := common.SanitizeMessage(err.Error())
		if text == "" || text == service.NoOutput {
			text = message
		} else {
			text = text + "\n" + message
		}
		report.Notes = append(report.Notes, PingHintNote)
	case out.ExitCode != 0:
		text = fmt.Sprintf("%s\n(ping exited with status %d)", text, out.ExitCode)
		report.Notes = append(report.Notes, PingHintNote)
	case text == service.NoOutput:
		report.Notes = append(report.Notes, PingHintNote)
	}

	report.PingOutput = &text
}

// trackClient counts first-seen client keys
func (uc *DiagnoseUseCase) trackClient(clientKey string) {
	if uc.clients == nil {
		return
	}
	if !uc.clients.TestAndAdd(clientKey) {
		atomic.AddInt64(&uc.metrics.UniqueClients, 1)
	}
}

func (uc *DiagnoseUseCase) recordReport(report *entity.DiagnosticReport) {
	succeeded := int64(report.Succeeded())
	atomic.AddInt64(&uc.metrics.ProbesSucceeded, succeeded)
	atomic.AddInt64(&uc.metrics.ProbesFailed, int64(len(report.ProbeResults))-succeeded)
	atomic.AddInt64(&uc.metrics.Completed, 1)

	target := net.JoinHostPort(report.Host, strconv.Itoa(report.Port))
	uc.metricsLock.Lock()
	uc.metrics.RecentTargets = append(uc.metrics.RecentTargets, target)
	if len(uc.metrics.RecentTargets) > maxRecentTargets {
		uc.metrics.RecentTargets = uc.metrics.RecentTargets[len(uc.metrics.RecentTargets)-maxRecentTargets:]
	}
	uc.metricsLock.Unlock()

	for _, observer := range uc.metricsObservers {
		observer.AddTarget(target)
	}
}

// notifyMetricsObservers notifies all registered observers
func (uc *DiagnoseUseCase) notifyMetricsObservers() {
	metrics := uc.GetMetrics()
	for _, observer := range uc.metricsObservers {
		observer.OnMetricsUpdate(metrics)
	}
}

// GetMetrics returns a snapshot of the current metrics
func (uc *DiagnoseUseCase) GetMetrics() *entity.Metrics {
	uc.metricsLock.RLock()
	defer uc.metricsLock.RUnlock()

	return &entity.Metrics{
		Requests:        atomic.LoadInt64(&uc.metrics.Requests),
		Completed:       atomic.LoadInt64(&uc.metrics.Completed),
		Unauthorized:    atomic.LoadInt64(&uc.metrics.Unauthorized),
		RateLimited:     atomic.LoadInt64(&uc.metrics.RateLimited),
		Invalid:         atomic.LoadInt64(&uc.metrics.Invalid),
		Unavailable:     atomic.LoadInt64(&uc.metrics.Unavailable),
		ProbesSucceeded: atomic.LoadInt64(&uc.metrics.ProbesSucceeded),
		ProbesFailed:    atomic.LoadInt64(&uc.metrics.ProbesFailed),
		PingRuns:        atomic.LoadInt64(&uc.metrics.PingRuns),
		UniqueClients:   atomic.LoadInt64(&uc.metrics.UniqueClients),
		StartTime:       uc.metrics.StartTime,
		LastUpdateTime:  time.Now(),
		RecentTargets:   append([]string(nil), uc.metrics.RecentTargets...),
	}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
