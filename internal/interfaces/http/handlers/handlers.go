package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/data"
	"github.com/sawpanic/edgarscore/internal/net/client"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores id on ctx for error bodies and logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "unknown".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// DataSource is what the API reads prices and statements from.
type DataSource interface {
	scoring.DataAccess
	GetVolume(ctx context.Context, ticker string, date time.Time) (float64, error)
}

// HealthCheck returns nil when the dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	data      DataSource
	scoring   scoring.Config
	options   []scoring.Option
	checks    map[string]HealthCheck
	version   string
	startTime time.Time
}

type Option func(*Handlers)

// WithScoringConfig sets the defaults each score request starts from.
func WithScoringConfig(cfg scoring.Config) Option {
	return func(h *Handlers) { h.scoring = cfg }
}

// WithScoringOptions are passed to every Scorer the API builds.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(h *Handlers) { h.options = append(h.options, opts...) }
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handlers) { h.checks[name] = check }
}

func WithVersion(v string) Option {
	return func(h *Handlers) { h.version = v }
}

// NewHandlers creates a new handlers instance
func NewHandlers(src DataSource, opts ...Option) *Handlers {
	h := &Handlers{
		data:      src,
		scoring:   scoring.Config{},
		checks:    make(map[string]HealthCheck),
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeDataError maps a data layer failure to a status and code.
func (h *Handlers) writeDataError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *client.ProviderError
	switch {
	case errors.Is(err, data.ErrUnknownTicker), errors.Is(err, data.ErrNoFiling), client.IsNotFound(err):
		h.writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, data.ErrYearRange):
		h.writeError(w, r, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, data.ErrNoFetcher):
		h.writeError(w, r, http.StatusServiceUnavailable, "cache_only", err.Error())
	case errors.As(err, &pe):
		h.writeError(w, r, http.StatusBadGateway, "provider_"+pe.Kind, err.Error())
	default:
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// Health handles GET /health. Any failing check marks the service degraded
// and answers 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(h.checks)),
	}

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		start := time.Now()
		err := check(ctx)
		cancel()

		result := CheckResult{Status: "pass", Duration: time.Since(start).Round(time.Microsecond).String()}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			resp.Status = "degraded"
		}
		resp.Checks[name] = result
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}
