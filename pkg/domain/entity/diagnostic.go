package entity

import (
	"math"
	"strings"
	"time"
)

// AddressFamily is the IP family of a resolved address
type AddressFamily string

const (
	IPv4 AddressFamily = "IPv4"
	IPv6 AddressFamily = "IPv6"
	// Unresolved marks the fallback probe against a raw host string
	Unresolved AddressFamily = "unresolved"
)

// DiagnosticRequest is a validated diagnostic request
type DiagnosticRequest struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	PingRequested  bool   `json:"ping_requested"`
}

// Timeout returns the per-operation timeout as a duration
func (r DiagnosticRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// RawRequest holds the untrusted inbound fields before validation
type RawRequest struct {
	Host    string
	Port    string
	Timeout string
	Ping    string
}

// PingChecked reports whether the raw ping field asks for a ping
func (r RawRequest) PingChecked() bool {
	switch strings.ToLower(strings.TrimSpace(r.Ping)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Credentials are the username and password presented by a caller
type Credentials struct {
	Username string
	Password string
}

// RateLimitRecord is the per-client fixed window counter
type RateLimitRecord struct {
	ClientKey   string    `json:"client_key"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// Expired reports whether the window has elapsed at now
func (r RateLimitRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) > window
}

// ResolvedAddress is a single address obtained from DNS or passed through as a literal
type ResolvedAddress struct {
	IP     string        `json:"ip"`
	Family AddressFamily `json:"family"`
}

// ProbeResult is the outcome of one TCP connection attempt
type ProbeResult struct {
	Address        ResolvedAddress `json:"address"`
	Succeeded      bool            `json:"succeeded"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	ErrorCode      *int            `json:"error_code,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// DiagnosticReport is the final result handed to the presentation layer
type DiagnosticReport struct {
	Host              string            `json:"host"`
	Port              int               `json:"port"`
	TimeoutSeconds    int               `json:"timeout_seconds"`
	ResolvedAddresses []ResolvedAddress `json:"resolved_addresses"`
	ProbeResults      []ProbeResult     `json:"probe_results"`
	PingCommand       string            `json:"ping_command,omitempty"`
	PingOutput        *string           `json:"ping_output,omitempty"`
	Notes             []string          `json:"notes"`
	StartedAt         time.Time         `json:"started_at"`
	Duration          time.Duration     `json:"duration"`
}

// Succeeded returns the number of successful probes
func (r *DiagnosticReport) Succeeded() int {
	n := 0
	for _, p := range r.ProbeResults {
		if p.Succeeded {
			n++
		}
	}
	return n
}

// RoundSeconds rounds a duration to seconds with millisecond precision
func RoundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// Metrics represents service counters
type Metrics struct {
	Requests        int64
	Completed       int64
	Unauthorized    int64
	RateLimited     int64
	Invalid         int64
	Unavailable     int64
	ProbesSucceeded int64
	ProbesFailed    int64
	PingRuns        int64
	UniqueClients   int64
	StartTime       time.Time
	LastUpdateTime  time.Time
	RecentTargets   []string
}
