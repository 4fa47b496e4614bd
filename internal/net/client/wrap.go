package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/edgarscore/internal/net/ratelimit"
)

// Error kinds carried by ProviderError.
const (
	KindRateLimit   = "rate_limit"
	KindCircuitOpen = "circuit_open"
	KindHTTPStatus  = "http_status"
	KindTransport   = "transport"
)

// Config configures one provider's HTTP client.
type Config struct {
	Provider         string        `yaml:"-"`
	UserAgent        string        `yaml:"user_agent"`
	RPS              float64       `yaml:"rps"`
	Burst            int           `yaml:"burst"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// DefaultConfig returns defaults suited to the SEC fair-access policy.
func DefaultConfig(provider string) Config {
	return Config{
		Provider:         provider,
		UserAgent:        "edgarscore admin@example.com",
		RPS:              10,
		Burst:            1,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Recorder observes completed requests. status is the HTTP status code or an
// error kind.
type Recorder interface {
	ProviderRequest(provider, status string, elapsed time.Duration)
}

// Wrapper wraps an HTTP RoundTripper with a user agent, per-host rate limiting
// and a circuit breaker.
type Wrapper struct {
	config    Config
	transport http.RoundTripper
	limiter   *ratelimit.Limiter
	breaker   *gobreaker.CircuitBreaker
	recorder  Recorder
}

// NewWrapper creates a new HTTP client wrapper. A nil transport uses
// http.DefaultTransport.
func NewWrapper(config Config, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultConfig(config.Provider).FailureThreshold
	}

	w := &Wrapper{
		config:    config,
		transport: transport,
		limiter:   ratelimit.NewLimiter(config.RPS, config.Burst),
	}
	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    config.Provider,
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var pe *ProviderError
			if errors.As(err, &pe) && pe.Kind == KindHTTPStatus {
				return pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	return w
}

// New returns an http.Client using a Wrapper over http.DefaultTransport.
func New(config Config) *http.Client {
	return &http.Client{Transport: NewWrapper(config, nil), Timeout: config.Timeout}
}

// SetRecorder attaches a request recorder.
func (w *Wrapper) SetRecorder(r Recorder) {
	w.recorder = r
}

// State returns the circuit breaker state.
func (w *Wrapper) State() gobreaker.State {
	return w.breaker.State()
}

// RoundTrip implements http.RoundTripper. Responses with status >= 400 are
// returned as *ProviderError with the body closed.
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" && w.config.UserAgent != "" {
		req.Header.Set("User-Agent", w.config.UserAgent)
	}

	if err := w.limiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, w.fail(start, &ProviderError{
			Provider: w.config.Provider,
			Kind:     KindRateLimit,
			Err:      fmt.Errorf("rate limit wait failed: %w", err),
		})
	}

	out, err := w.breaker.Execute(func() (interface{}, error) {
		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			return nil, &ProviderError{Provider: w.config.Provider, Kind: KindTransport, Err: err}
		}
		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			return nil, &ProviderError{
				Provider:   w.config.Provider,
				Kind:       KindHTTPStatus,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s %s: HTTP %d", req.Method, req.URL.Path, resp.StatusCode),
			}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &ProviderError{Provider: w.config.Provider, Kind: KindCircuitOpen, Err: err}
	}
	if err != nil {
		return nil, w.fail(start, err)
	}

	resp := out.(*http.Response)
	w.record(strconv.Itoa(resp.StatusCode), start)
	return resp, nil
}

func (w *Wrapper) fail(start time.Time, err error) error {
	status := KindTransport
	var pe *ProviderError
	if errors.As(err, &pe) {
		status = pe.Kind
		if pe.Kind == KindHTTPStatus {
			status = strconv.Itoa(pe.StatusCode)
		}
	}
	w.record(status, start)
	return err
}

func (w *Wrapper) record(status string, start time.Time) {
	if w.recorder != nil {
		w.recorder.ProviderRequest(w.config.Provider, status, time.Since(start))
	}
}

// ProviderError represents an error from a provider with context
type ProviderError struct {
	Provider   string `json:"provider"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited returns true if the error is due to rate limiting
func (e *ProviderError) IsRateLimited() bool {
	return e.Kind == KindRateLimit || e.StatusCode == http.StatusTooManyRequests
}

// IsCircuitOpen returns true if the error is due to circuit breaker being open
func (e *ProviderError) IsCircuitOpen() bool {
	return e.Kind == KindCircuitOpen
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
