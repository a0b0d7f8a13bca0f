package domainservice

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/service"
)

const (
	// DefaultTimeoutSeconds is used when the caller omits a timeout
	DefaultTimeoutSeconds = 3
	// MinTimeoutSeconds is the floor applied to caller supplied timeouts
	MinTimeoutSeconds = 1
	// CeilingTimeoutSeconds bounds timeouts even when no maximum is configured
	CeilingTimeoutSeconds = 24 * 60 * 60
)

// Validator implements service.RequestValidator
type Validator struct {
	maxTimeout int
	hostRegex  *regexp.Regexp
}

// Config holds validator configuration
type Config struct {
	// MaxTimeoutSeconds caps caller supplied timeouts, 0 means no cap
	MaxTimeoutSeconds int
}

// NewValidator creates a new request validator
func NewValidator(config Config) service.RequestValidator {
	return &Validator{
		maxTimeout: config.MaxTimeoutSeconds,
		hostRegex:  regexp.MustCompile(`^[A-Za-z0-9.-]{1,253}$`),
	}
}

// Validate implements service.RequestValidator
func (v *Validator) Validate(raw entity.RawRequest, pingAllowed bool) (*entity.DiagnosticRequest, error) {
	host, err := v.validateHost(raw.Host)
	if err != nil {
		return nil, err
	}

	port, err := v.validatePort(raw.Port)
	if err != nil {
		return nil, err
	}

	timeout, err := v.validateTimeout(raw.Timeout)
	if err != nil {
		return nil, err
	}

	return &entity.DiagnosticRequest{
		Host:           host,
		Port:           port,
		TimeoutSeconds: timeout,
		PingRequested:  pingAllowed && raw.PingChecked(),
	}, nil
}

func (v *Validator) validateHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", &entity.ValidationError{Field: "host", Reason: "host is required", Err: entity.ErrInvalidHost}
	}

	// Bracketed IPv6 literals as typed in URLs
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" {
			return "", &entity.ValidationError{Field: "host", Reason: "zoned IPv6 addresses are not accepted", Err: entity.ErrInvalidHost}
		}
		return addr.String(), nil
	}

	if !v.hostRegex.MatchString(host) {
		return "", &entity.ValidationError{
			Field:  "host",
			Reason: "must be an IP address or a hostname made of letters, digits, '.' and '-'",
			Err:    entity.ErrInvalidHost,
		}
	}
	return strings.ToLower(host), nil
}

func (v *Validator) validatePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return 0, &entity.ValidationError{Field: "port", Reason: "must be an integer between 1 and 65535", Err: entity.ErrInvalidPort}
	}
	return port, nil
}

func (v *Validator) validateTimeout(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return v.capTimeout(DefaultTimeoutSeconds), nil
	}

	timeout, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &entity.ValidationError{Field: "timeout", Reason: fmt.Sprintf("must be a whole number of seconds, got %q", truncate(raw, 16)), Err: entity.ErrInvalidTimeout}
	}
	if timeout < MinTimeoutSeconds {
		timeout = MinTimeoutSeconds
	}
	return v.capTimeout(timeout), nil
}

func (v *Validator) capTimeout(timeout int) int {
	if v.maxTimeout > 0 && timeout > v.maxTimeout {
		return v.maxTimeout
	}
	if timeout > CeilingTimeoutSeconds {
		return CeilingTimeoutSeconds
	}
	return timeout
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
