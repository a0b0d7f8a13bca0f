package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WangYihang/netcheck/pkg/common"
	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// Diagnoser runs authenticated diagnostics
type Diagnoser interface {
	Authenticate(creds *entity.Credentials) bool
	Handle(ctx context.Context, raw entity.RawRequest, creds *entity.Credentials, clientKey string) (*entity.DiagnosticReport, error)
	PingEnabled() bool
}

// KeyDeriver turns a caller identity into an opaque client key
type KeyDeriver interface {
	Derive(identity string) string
}

// Config holds the web handler configuration
type Config struct {
	// TrustProxyHeader takes the client identity from the first X-Forwarded-For hop
	TrustProxyHeader bool
	Logger           *slog.Logger
}

// Handler serves the diagnostic page, its JSON variant and the health endpoint
type Handler struct {
	diagnoser  Diagnoser
	keys       KeyDeriver
	auth       BasicAuth
	trustProxy bool
	logger     *slog.Logger
}

// NewHandler creates a new web handler
func NewHandler(config Config, diagnoser Diagnoser, keys KeyDeriver) *Handler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Handler{
		diagnoser:  diagnoser,
		keys:       keys,
		trustProxy: config.TrustProxyHeader,
		logger:     config.Logger,
	}
}

// Routes returns the HTTP routes of the service
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.serveIndex)
	mux.HandleFunc("GET /healthz", h.serveHealth)
	return mux
}

type errorBody struct {
	Error             string `json:"error"`
	Field             string `json:"field,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw := entity.RawRequest{
		Host:    query.Get("host"),
		Port:    query.Get("port"),
		Timeout: query.Get("timeout"),
		Ping:    query.Get("ping"),
	}
	if strings.TrimSpace(raw.Host) == "" {
		raw.Host = query.Get("ip")
	}

	asJSON := wantsJSON(r)
	page := pageData{
		Host:        raw.Host,
		Port:        raw.Port,
		Timeout:     raw.Timeout,
		Ping:        raw.PingChecked(),
		PingEnabled: h.diagnoser.PingEnabled(),
	}

	creds := h.auth.CurrentCredentials(r)
	if !h.diagnoser.Authenticate(creds) {
		h.auth.Challenge(w)
		h.fail(w, asJSON, page, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}

	if strings.TrimSpace(raw.Host) == "" {
		if asJSON {
			h.fail(w, true, page, http.StatusBadRequest, errorBody{Error: "invalid host: host is required", Field: "host"})
			return
		}
		h.render(w, http.StatusOK, page)
		return
	}

	clientKey := h.keys.Derive(ClientIdentity(r, h.trustProxy))
	report, err := h.diagnoser.Handle(r.Context(), raw, creds, clientKey)
	if err != nil {
		status, body := errorStatus(err)
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
		}
		h.fail(w, asJSON, page, status, body)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}
	page.Report = report
	h.render(w, http.StatusOK, page)
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": common.PV.Short(),
	})
}

// errorStatus maps a terminal use case error to a status code and caller-safe body
func errorStatus(err error) (int, errorBody) {
	var limited *entity.RateLimitedError
	var invalid *entity.ValidationError

	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Error: "authentication required"}
	case errors.As(err, &limited):
		seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later", RetryAfterSeconds: seconds}
	case errors.As(err, &invalid):
		return http.StatusBadRequest, errorBody{Error: common.SanitizeMessage(invalid.Error()), Field: invalid.Field}
	case errors.Is(err, entity.ErrRateLimiterUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "service temporarily unavailable"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func (h *Handler) fail(w http.ResponseWriter, asJSON bool, page pageData, status int, body errorBody) {
	if asJSON {
		writeJSON(w, status, body)
		return
	}
	page.Error = body.Error
	h.render(w, status, page)
}

func (h *Handler) render(w http.ResponseWriter, status int, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, page); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
