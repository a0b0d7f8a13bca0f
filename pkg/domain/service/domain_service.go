package service

import (
	"context"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// RequestValidator turns untrusted inbound fields into a typed request
type RequestValidator interface {
	// Validate parses the raw fields; pingAllowed is the deployment feature flag
	Validate(raw entity.RawRequest, pingAllowed bool) (*entity.DiagnosticRequest, error)
}

// Authenticator checks presented credentials against the configured ones
type Authenticator interface {
	Authenticate(creds *entity.Credentials) bool
}

// RateLimiter admits or denies a client for the current window
type RateLimiter interface {
	Admit(ctx context.Context, clientKey string) (Decision, error)
}

// Decision is the outcome of a rate limiter check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Count      int
}

// DNSResolver resolves hosts to addresses
type DNSResolver interface {
	// Resolve returns the deduplicated IPv4 and IPv6 addresses of host
	Resolve(ctx context.Context, host string) ([]entity.ResolvedAddress, error)
}

// ConnectivityProber attempts TCP connections
type ConnectivityProber interface {
	// Probe never returns an error; failures are recorded in the result
	Probe(ctx context.Context, address entity.ResolvedAddress, port int, timeout time.Duration) entity.ProbeResult
}

// PingRunner runs the ping utility against a host
type PingRunner interface {
	Run(ctx context.Context, host string) (*PingOutput, error)
}

// NoOutput marks a ping run that printed nothing
const NoOutput = "(no output)"

// PingOutput is the captured output of a ping run
type PingOutput struct {
	Command  string
	Output   string
	ExitCode int
	Elapsed  time.Duration
}
