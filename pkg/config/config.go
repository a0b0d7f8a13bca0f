package config

import "time"

// Config holds all runtime configuration
type Config struct {
	Server       ServerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	DNS          DNSConfig
	Probe        ProbeConfig
	Ping         PingConfig
	ClientFilter ClientFilterConfig
	Log          LogConfig
}

type ServerConfig struct {
	Listen           string
	MetricsListen    string
	TrustProxyHeader bool
	ShowDashboard    bool
}

type AuthConfig struct {
	Username string
	Password string
	// ClientKeySecret keys the HMAC of caller identities; empty means a secret persisted in the state dir
	ClientKeySecret string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	StateDir    string
}

type DNSConfig struct {
	Servers []string
	Timeout time.Duration
}

type ProbeConfig struct {
	MaxTimeoutSeconds int
}

type PingConfig struct {
	Enabled  bool
	Path     string
	Deadline time.Duration
}

type ClientFilterConfig struct {
	Size              uint
	FalsePositiveRate float64
	File              string
}

type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when no flags are given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        ":8080",
			MetricsListen: ":2112",
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 12,
			Window:      60 * time.Second,
			StateDir:    "netcheck-state",
		},
		DNS: DNSConfig{
			Timeout: 3 * time.Second,
		},
		Probe: ProbeConfig{
			MaxTimeoutSeconds: 10,
		},
		Ping: PingConfig{
			Path:     "ping",
			Deadline: 10 * time.Second,
		},
		ClientFilter: ClientFilterConfig{
			Size:              100000,
			FalsePositiveRate: 0.01,
			File:              "clients.bloom",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
