// Package config loads edgarscore settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/edgarscore/internal/backtest"
	"github.com/sawpanic/edgarscore/internal/data/cache"
	"github.com/sawpanic/edgarscore/internal/infrastructure/db"
	httpapi "github.com/sawpanic/edgarscore/internal/interfaces/http"
	"github.com/sawpanic/edgarscore/internal/net/client"
	"github.com/sawpanic/edgarscore/internal/providers/edgar"
	"github.com/sawpanic/edgarscore/internal/providers/prices"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// Config is the complete application configuration
type Config struct {
	Redis      cache.Config         `yaml:"redis"`
	Postgres   db.Config            `yaml:"postgres"`
	Edgar      ProviderConfig       `yaml:"edgar"`
	Prices     ProviderConfig       `yaml:"prices"`
	Scoring    ScoringConfig        `yaml:"scoring"`
	Backtest   BacktestConfig       `yaml:"backtest"`
	HTTP       httpapi.ServerConfig `yaml:"http"`
	Log        LogConfig            `yaml:"log"`
	Normalizer NormalizerConfig     `yaml:"normalizer"`
}

// ProviderConfig is one outbound data provider.
type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	client.Config `yaml:",inline"`
}

// ScoringConfig holds run defaults. Dates are "2006-01-02" or a bare year.
type ScoringConfig struct {
	StartDate string           `yaml:"start_date"`
	EndDate   string           `yaml:"end_date"`
	Workers   int              `yaml:"workers"`
	Sort      string           `yaml:"sort"`
	Filters   []scoring.Filter `yaml:"filters"`
}

type BacktestConfig struct {
	Buy          string   `yaml:"buy"`
	Sell         string   `yaml:"sell"`
	IndexTickers []string `yaml:"index_tickers"`
}

// LogConfig selects the level and the writer: "auto" picks console output
// on a terminal and JSON otherwise.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type NormalizerConfig struct {
	DialectsFile string `yaml:"dialects_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	edgarCfg := client.DefaultConfig("edgar")
	pricesCfg := client.DefaultConfig("prices")
	pricesCfg.UserAgent = "Mozilla/5.0 (compatible; edgarscore)"
	pricesCfg.RPS = 2

	return Config{
		Redis:    cache.DefaultConfig(),
		Postgres: db.DefaultConfig(),
		Edgar:    ProviderConfig{BaseURL: edgar.DefaultBaseURL, Config: edgarCfg},
		Prices:   ProviderConfig{BaseURL: prices.DefaultBaseURL, Config: pricesCfg},
		Scoring: ScoringConfig{
			Workers: scoring.DefaultWorkers,
			Sort:    string(scoring.DefaultSortField),
		},
		Backtest: BacktestConfig{IndexTickers: backtest.DefaultIndexTickers},
		HTTP:     httpapi.DefaultServerConfig(),
		Log:      LogConfig{Level: "info", Format: "auto"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	c.Postgres.ApplyEnv()
	if v, err := strconv.Atoi(os.Getenv("HTTP_PORT")); err == nil {
		c.HTTP.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("EDGAR_USER_AGENT"); v != "" {
		c.Edgar.UserAgent = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := c.Edgar.Validate(); err != nil {
		return fmt.Errorf("edgar: %w", err)
	}
	if !strings.Contains(c.Edgar.UserAgent, "@") {
		// SEC fair access requires a contact address in the agent.
		return fmt.Errorf("edgar: user_agent must include a contact email, got %q", c.Edgar.UserAgent)
	}
	if err := c.Prices.Validate(); err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	if _, err := c.Scoring.Build(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if _, err := scoring.CompileFilters(c.Scoring.Filters); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Backtest.Buy != "" || c.Backtest.Sell != "" {
		if _, err := c.Backtest.Window(); err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http: port must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// Validate rejects unusable provider settings.
func (p ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	if p.RPS < 0 {
		return fmt.Errorf("rps cannot be negative, got %g", p.RPS)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", p.Timeout)
	}
	return nil
}

// Client returns the wrapper settings tagged with the provider name.
func (p ProviderConfig) Client(provider string) client.Config {
	cfg := p.Config
	cfg.Provider = provider
	return cfg
}

// Build resolves the scoring section into a run config. Unset dates stay
// zero and take the scorer's defaults relative to the end date.
func (s ScoringConfig) Build() (scoring.Config, error) {
	cfg := scoring.Config{Workers: scoring.DefaultWorkers, SortField: scoring.DefaultSortField}
	if s.StartDate != "" {
		t, err := scoring.ParseFiscalDate(s.StartDate)
		if err != nil {
			return cfg, err
		}
		cfg.StartDate = t
	}
	if s.EndDate != "" {
		t, err := scoring.ParseFiscalDate(s.EndDate)
		if err != nil {
			return cfg, err
		}
		cfg.EndDate = t
	}
	if s.Workers < 0 {
		return cfg, fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	if s.Sort != "" {
		f, err := scoring.ParseField(s.Sort)
		if err != nil {
			return cfg, err
		}
		cfg.SortField = f
	}
	return cfg, cfg.Validate()
}

// Window parses the buy and sell dates.
func (b BacktestConfig) Window() (backtest.Window, error) {
	var w backtest.Window
	var err error
	if w.Buy, err = time.Parse(scoring.DateLayout, b.Buy); err != nil {
		return w, fmt.Errorf("invalid buy date %q", b.Buy)
	}
	if w.Sell, err = time.Parse(scoring.DateLayout, b.Sell); err != nil {
		return w, fmt.Errorf("invalid sell date %q", b.Sell)
	}
	return w, w.Validate()
}
