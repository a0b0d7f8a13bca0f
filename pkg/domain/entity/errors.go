package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when credentials are absent or wrong
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimiterUnavailable is returned when the rate-limit store fails; requests are denied
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrDNSResolutionFailed is returned when neither A nor AAAA lookups yield an address
	ErrDNSResolutionFailed = errors.New("dns resolution failed")
	// ErrPingDisabled is returned when ping is not enabled for this deployment
	ErrPingDisabled = errors.New("ping is unavailable or disabled")
	// ErrPingUnavailable is returned when the ping utility cannot be started
	ErrPingUnavailable = errors.New("ping utility unavailable")
	// ErrSubprocessTimeout is returned when a subprocess overruns its deadline
	ErrSubprocessTimeout = errors.New("subprocess timed out")

	ErrInvalidHost    = errors.New("invalid host")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// ValidationError describes a rejected request field
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RateLimitedError is returned when a client exceeded its window
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
