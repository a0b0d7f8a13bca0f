package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/WangYihang/netcheck/pkg/application"
	"github.com/WangYihang/netcheck/pkg/config"
	"github.com/WangYihang/netcheck/pkg/domain/repository"
	"github.com/WangYihang/netcheck/pkg/domain/service"
	"github.com/WangYihang/netcheck/pkg/infrastructure/auth"
	"github.com/WangYihang/netcheck/pkg/infrastructure/dns"
	"github.com/WangYihang/netcheck/pkg/infrastructure/domainservice"
	"github.com/WangYihang/netcheck/pkg/infrastructure/ping"
	"github.com/WangYihang/netcheck/pkg/infrastructure/probe"
	"github.com/WangYihang/netcheck/pkg/infrastructure/storage"
)

const secretFile = "client-key.secret"

// Assembler assembles all components for the application
type Assembler struct {
	config *config.Config
	logger *slog.Logger

	clients     repository.ClientFilter
	clientsFile string
}

// NewAssembler creates a new assembler
func NewAssembler(config *config.Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{config: config, logger: logger}
}

// Service is the assembled web service
type Service struct {
	UseCase *application.DiagnoseUseCase
	Keys    *auth.KeyDeriver
}

// AssembleService assembles the authenticated, rate limited use case
func (a *Assembler) AssembleService() (*Service, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.RateLimit.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	store, err := storage.NewFileRateLimitStore(filepath.Join(cfg.RateLimit.StateDir, "ratelimit"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	limiter := application.NewFixedWindowLimiter(application.RateLimitConfig{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}, store)

	secret := cfg.Auth.ClientKeySecret
	if secret == "" {
		secret, err = loadOrCreateSecret(filepath.Join(cfg.RateLimit.StateDir, secretFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load client key secret: %w", err)
		}
	}

	// Create repositories
	a.clients = storage.NewBloomFilter(storage.Config{
		Size:              cfg.ClientFilter.Size,
		FalsePositiveRate: cfg.ClientFilter.FalsePositiveRate,
	})
	a.clientsFile = filepath.Join(cfg.RateLimit.StateDir, cfg.ClientFilter.File)

	// Load existing client filter if exists
	if err := a.clients.Load(a.clientsFile); err != nil {
		a.logger.Warn("failed to load client filter", "file", a.clientsFile, "error", err)
	}

	useCase := application.NewDiagnoseUseCase(
		application.Config{PingEnabled: cfg.Ping.Enabled},
		application.Dependencies{
			Authenticator: auth.NewStaticAuthenticator(cfg.Auth.Username, cfg.Auth.Password),
			Limiter:       limiter,
			Validator:     a.validator(),
			Resolver:      a.resolver(),
			Prober:        probe.NewTCPProber(),
			Pinger:        a.pinger(),
			Clients:       a.clients,
			Logger:        a.logger,
		},
	)

	return &Service{
		UseCase: useCase,
		Keys:    auth.NewKeyDeriver(secret),
	}, nil
}

// AssembleLocal assembles a use case for local one-shot checks
func (a *Assembler) AssembleLocal() *application.DiagnoseUseCase {
	return application.NewDiagnoseUseCase(
		application.Config{PingEnabled: a.config.Ping.Enabled},
		application.Dependencies{
			Validator: a.validator(),
			Resolver:  a.resolver(),
			Prober:    probe.NewTCPProber(),
			Pinger:    a.pinger(),
			Logger:    a.logger,
		},
	)
}

// SaveState persists the client filter
func (a *Assembler) SaveState() error {
	if a.clients == nil {
		return nil
	}
	return a.clients.Save(a.clientsFile)
}

func (a *Assembler) validator() service.RequestValidator {
	return domainservice.NewValidator(domainservice.Config{
		MaxTimeoutSeconds: a.config.Probe.MaxTimeoutSeconds,
	})
}

func (a *Assembler) resolver() service.DNSResolver {
	resolver := dns.NewResolver(dns.Config{
		Servers: a.config.DNS.Servers,
		Timeout: a.config.DNS.Timeout,
		Logger:  a.logger,
	})
	a.logger.Debug("dns resolver configured", "servers", resolver.Servers(), "timeout", a.config.DNS.Timeout)
	return resolver
}

// pinger returns nil when ping is disabled, which disables it in the use case
func (a *Assembler) pinger() service.PingRunner {
	if !a.config.Ping.Enabled {
		return nil
	}
	return ping.NewRunner(ping.Config{
		Command:  ping.PingCommand(runtime.GOOS, a.config.Ping.Path),
		Deadline: a.config.Ping.Deadline,
	})
}

// loadOrCreateSecret reads the HMAC secret at path, generating it on first use
func loadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", err
	}
	return secret, nil
}
