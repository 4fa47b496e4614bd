package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/config"
	"github.com/sawpanic/edgarscore/internal/data"
	"github.com/sawpanic/edgarscore/internal/data/cache"
	"github.com/sawpanic/edgarscore/internal/financials"
	"github.com/sawpanic/edgarscore/internal/infrastructure/db"
	httpapi "github.com/sawpanic/edgarscore/internal/interfaces/http"
	"github.com/sawpanic/edgarscore/internal/net/client"
	"github.com/sawpanic/edgarscore/internal/providers/edgar"
	"github.com/sawpanic/edgarscore/internal/providers/prices"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// app owns the long-lived clients a command needs.
type app struct {
	cfg        config.Config
	cache      *cache.Store
	db         *db.Manager
	services   *data.Services
	normalizer *financials.Normalizer
	metrics    *httpapi.MetricsRegistry
}

func openApp(ctx context.Context, cfg config.Config, offline bool) (*app, error) {
	a := &app{cfg: cfg, metrics: httpapi.NewMetricsRegistry()}

	dialects := financials.DefaultDialects()
	if path := cfg.Normalizer.DialectsFile; path != "" {
		var err error
		if dialects, err = financials.LoadDialects(path); err != nil {
			return nil, err
		}
	}
	a.normalizer = financials.NewNormalizer(dialects...)

	store, err := cache.Dial(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	store.SetRecorder(a.metrics)
	a.cache = store

	a.db, err = db.NewManager(ctx, cfg.Postgres)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []data.Option{data.WithIndexTickers(cfg.Backtest.IndexTickers...)}
	if offline {
		log.Info().Msg("Offline mode, serving from cache only")
	} else {
		edgarClient := edgar.New(a.providerClient(cfg.Edgar.Client("edgar")), cfg.Edgar.BaseURL)
		priceClient := prices.New(a.providerClient(cfg.Prices.Client("prices")), cfg.Prices.BaseURL)
		opts = append(opts, data.WithFilings(edgarClient), data.WithPriceHistory(priceClient))
	}
	a.services = data.NewServices(store, a.db.IndexRepo(), opts...)
	return a, nil
}

// providerClient builds a rate limited, circuit broken client that reports
// into the metrics registry.
func (a *app) providerClient(cfg client.Config) *http.Client {
	w := client.NewWrapper(cfg, nil)
	w.SetRecorder(a.metrics)
	return &http.Client{Transport: w, Timeout: cfg.Timeout}
}

// scorerOptions attaches the app's normalizer and metrics plus any extra
// observers.
func (a *app) scorerOptions(observers ...scoring.Observer) []scoring.Option {
	opts := []scoring.Option{scoring.WithNormalizer(a.normalizer), scoring.WithObserver(a.metrics)}
	for _, o := range observers {
		opts = append(opts, scoring.WithObserver(o))
	}
	return opts
}

func (a *app) scorer(cfg scoring.Config, observers ...scoring.Observer) *scoring.Scorer {
	return scoring.New(a.services, cfg, a.scorerOptions(observers...)...)
}

func (a *app) Close() error {
	return errors.Join(a.db.Close(), a.cache.Close())
}
