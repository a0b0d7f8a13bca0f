package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/WangYihang/netcheck/pkg/config"
	"github.com/jessevdk/go-flags"
)

// LogOptions are accepted by every command
type LogOptions struct {
	LogLevel  string `long:"log-level" env:"NETCHECK_LOG_LEVEL" description:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `long:"log-format" env:"NETCHECK_LOG_FORMAT" description:"Log format (text, json)" default:"text" choice:"text" choice:"json"`
}

// DNSOptions configure the resolver
type DNSOptions struct {
	DNSServers []string `long:"dns-server" description:"DNS server host:port, repeatable (default: resolv.conf, then 8.8.8.8 and 1.1.1.1)"`
	DNSTimeout int      `long:"dns-timeout" description:"DNS query timeout in seconds" default:"3"`
}

// PingOptions configure the shell ping runner
type PingOptions struct {
	PingPath     string `long:"ping-path" env:"NETCHECK_PING_PATH" description:"Path of the ping utility" default:"ping"`
	PingDeadline int    `long:"ping-deadline" description:"Seconds after which a running ping is killed" default:"10"`
}

// ServeOptions holds the flags of the serve command
type ServeOptions struct {
	LogOptions
	DNSOptions
	PingOptions

	Listen        string `long:"listen" env:"NETCHECK_LISTEN" description:"HTTP listen address" default:":8080"`
	MetricsListen string `long:"metrics-listen" env:"NETCHECK_METRICS_LISTEN" description:"Prometheus listen address, empty disables" default:":2112"`

	// Auth
	AuthUser        string `long:"auth-user" env:"NETCHECK_AUTH_USER" description:"Basic auth username"`
	AuthPassword    string `long:"auth-password" env:"NETCHECK_AUTH_PASSWORD" description:"Basic auth password"`
	ClientKeySecret string `long:"client-key-secret" env:"NETCHECK_CLIENT_KEY_SECRET" description:"Secret for hashing client identities (default: generated and kept in the state dir)"`

	// Rate limit
	RateMax    int    `long:"rate-max" description:"Requests allowed per client per window" default:"12"`
	RateWindow int    `long:"rate-window" description:"Rate limit window in seconds" default:"60"`
	StateDir   string `long:"state-dir" env:"NETCHECK_STATE_DIR" description:"Directory for rate limit records and client filter" default:"netcheck-state"`

	EnablePing bool `long:"enable-ping" env:"NETCHECK_ENABLE_PING" description:"Allow callers to request a shell ping"`
	MaxTimeout int  `long:"max-timeout" description:"Upper bound for caller supplied timeouts in seconds" default:"10"`

	// Client filter
	ClientFilterSize uint64  `long:"client-filter-size" description:"Bloom filter capacity for unique client counting" default:"100000"`
	ClientFilterFP   float64 `long:"client-filter-fp" description:"Bloom filter false positive rate" default:"0.01"`

	TrustProxyHeader bool `long:"trust-proxy-header" description:"Identify clients by the first X-Forwarded-For hop"`
	ShowDashboard    bool `long:"dashboard" description:"Show interactive TUI dashboard"`
}

// CheckOptions holds the flags of the check command
type CheckOptions struct {
	LogOptions
	DNSOptions
	PingOptions

	Host    string `long:"host" description:"Target IP address or hostname" required:"true"`
	Port    string `long:"port" description:"Target TCP port" required:"true"`
	Timeout string `long:"timeout" description:"Per-attempt timeout in seconds" default:"3"`
	Ping    bool   `long:"ping" description:"Also run the ping utility"`
	JSON    bool   `long:"json" description:"Print the report as JSON"`
}

// Options is the root of the command line
type Options struct {
	Serve   ServeOptions `command:"serve" description:"Run the authenticated diagnostic web service"`
	Check   CheckOptions `command:"check" description:"Diagnose one host and port from this machine"`
	Version struct{}     `command:"version" description:"Print version information"`
}

// ParseFlags parses command line flags and returns the options and the chosen command
func ParseFlags(args []string) (*Options, string, error) {
	opts := &Options{}

	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			// Help has been printed by the library, exit cleanly
			os.Exit(0)
		}
		return nil, "", err
	}

	command := parser.Active.Name
	switch command {
	case "serve":
		if err := opts.Serve.Validate(); err != nil {
			return nil, "", err
		}
	case "check":
		if err := opts.Check.Validate(); err != nil {
			return nil, "", err
		}
	}
	return opts, command, nil
}

// Validate validates the serve options
func (o *ServeOptions) Validate() error {
	if o.AuthUser == "" || o.AuthPassword == "" {
		return errors.New("--auth-user and --auth-password (or NETCHECK_AUTH_USER and NETCHECK_AUTH_PASSWORD) are required")
	}

	if o.RateMax <= 0 {
		return fmt.Errorf("rate max must be > 0, got %d", o.RateMax)
	}

	if o.RateWindow <= 0 {
		return fmt.Errorf("rate window must be > 0, got %d", o.RateWindow)
	}

	if o.MaxTimeout < 1 {
		return fmt.Errorf("max timeout must be >= 1, got %d", o.MaxTimeout)
	}

	if o.StateDir == "" {
		return errors.New("state dir must not be empty")
	}

	if o.ClientFilterSize == 0 {
		return errors.New("client filter size must be > 0")
	}

	if o.ClientFilterFP <= 0 || o.ClientFilterFP >= 1 {
		return fmt.Errorf("client filter false positive rate must be between 0 and 1, got %f", o.ClientFilterFP)
	}

	return o.DNSOptions.Validate()
}

// Validate validates the check options
func (o *CheckOptions) Validate() error {
	return o.DNSOptions.Validate()
}

// Validate validates the DNS options
func (o *DNSOptions) Validate() error {
	if o.DNSTimeout <= 0 {
		return fmt.Errorf("DNS timeout must be > 0, got %d", o.DNSTimeout)
	}
	return nil
}

// Config converts the serve options into the runtime configuration
func (o *ServeOptions) Config() *config.Config {
	cfg := config.Default()
	cfg.Server = config.ServerConfig{
		Listen:           o.Listen,
		MetricsListen:    o.MetricsListen,
		TrustProxyHeader: o.TrustProxyHeader,
		ShowDashboard:    o.ShowDashboard,
	}
	cfg.Auth = config.AuthConfig{
		Username:        o.AuthUser,
		Password:        o.AuthPassword,
		ClientKeySecret: o.ClientKeySecret,
	}
	cfg.RateLimit = config.RateLimitConfig{
		MaxRequests: o.RateMax,
		Window:      time.Duration(o.RateWindow) * time.Second,
		StateDir:    o.StateDir,
	}
	cfg.DNS = o.DNSOptions.config()
	cfg.Probe.MaxTimeoutSeconds = o.MaxTimeout
	cfg.Ping = o.PingOptions.config(o.EnablePing)
	cfg.ClientFilter.Size = uint(o.ClientFilterSize)
	cfg.ClientFilter.FalsePositiveRate = o.ClientFilterFP
	cfg.Log = o.LogOptions.config()
	return cfg
}

// Config converts the check options into the runtime configuration
func (o *CheckOptions) Config() *config.Config {
	cfg := config.Default()
	cfg.DNS = o.DNSOptions.config()
	cfg.Ping = o.PingOptions.config(o.Ping)
	cfg.Log = o.LogOptions.config()
	// A local check is not capped by the service limit
	cfg.Probe.MaxTimeoutSeconds = 0
	return cfg
}

func (o *DNSOptions) config() config.DNSConfig {
	return config.DNSConfig{
		Servers: o.DNSServers,
		Timeout: time.Duration(o.DNSTimeout) * time.Second,
	}
}

func (o *PingOptions) config(enabled bool) config.PingConfig {
	return config.PingConfig{
		Enabled:  enabled,
		Path:     o.PingPath,
		Deadline: time.Duration(o.PingDeadline) * time.Second,
	}
}

func (o *LogOptions) config() config.LogConfig {
	return config.LogConfig{Level: o.LogLevel, Format: o.LogFormat}
}
