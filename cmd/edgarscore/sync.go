package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/edgarscore/internal/infrastructure/async"
	applog "github.com/sawpanic/edgarscore/internal/log"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// syncFlags select what a sync subcommand warms.
type syncFlags struct {
	tickers   []string
	startYear int
	endYear   int
	workers   int
}

func (f *syncFlags) years() ([]int, error) {
	if f.endYear < f.startYear {
		return nil, fmt.Errorf("end year %d is before start year %d", f.endYear, f.startYear)
	}
	years := make([]int, 0, f.endYear-f.startYear+1)
	for y := f.startYear; y <= f.endYear; y++ {
		years = append(years, y)
	}
	return years, nil
}

func newSyncCmd(g *globals) *cobra.Command {
	flags := &syncFlags{}
	now := time.Now().UTC().Year()

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Warm the cache and filing index ahead of a run",
	}
	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&flags.tickers, "tickers", nil, "Comma-separated tickers (default: the whole universe)")
	pf.IntVar(&flags.startYear, "start", now-5, "First year")
	pf.IntVar(&flags.endYear, "end", now, "Last year")
	pf.IntVar(&flags.workers, "workers", 8, "Concurrent fetches")

	// withApp opens the app for a subcommand and closes it after.
	withApp := func(run func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if g.offline {
				return fmt.Errorf("sync needs network access, drop --offline")
			}
			a, err := openApp(cmd.Context(), g.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a)
		}
	}

	universe := func(ctx context.Context, a *app) ([]string, error) {
		if t := normalizeTickers(flags.tickers); len(t) > 0 {
			return t, nil
		}
		return a.services.GetTickerList(ctx)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "tickers",
			Short: "Refresh the ticker to CIK mapping",
			RunE: withApp(func(ctx context.Context, a *app) error {
				n, err := a.services.SyncTickerList(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("tickers", n).Msg("ticker list synced")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "index",
			Short: "Load the annual report index for each year",
			RunE: withApp(func(ctx context.Context, a *app) error {
				years, err := flags.years()
				if err != nil {
					return err
				}
				errs := async.ForEach(ctx, years, 1, a.services.EnsureIndex)
				return summarize("index", len(years), errs)
			}),
		},
		&cobra.Command{
			Use:   "prices",
			Short: "Download daily price and volume history",
			RunE: withApp(func(ctx context.Context, a *app) error {
				tickers, err := universe(ctx, a)
				if err != nil {
					return err
				}
				tickers = append(tickers, a.cfg.Backtest.IndexTickers...)
				progress := applog.NewProgress("sync prices", len(tickers), 5*time.Second)
				errs := async.ForEach(ctx, tickers, flags.workers, func(ctx context.Context, t string) error {
					start := time.Now()
					err := a.services.FetchTickerPrices(ctx, t)
					progress.TickerDone(t, scoring.StageFetch, err, time.Since(start))
					return err
				})
				progress.Finish()
				return summarize("prices", len(tickers), errs)
			}),
		},
		&cobra.Command{
			Use:   "financials",
			Short: "Download and extract annual report facts",
			RunE: withApp(func(ctx context.Context, a *app) error {
				years, err := flags.years()
				if err != nil {
					return err
				}
				tickers, err := universe(ctx, a)
				if err != nil {
					return err
				}
				// Every year's index is loaded before fanning out over tickers.
				if err := summarize("index", len(years), async.ForEach(ctx, years, 1, a.services.EnsureIndex)); err != nil {
					return err
				}

				progress := applog.NewProgress("sync financials", len(tickers), 5*time.Second)
				errs := async.ForEach(ctx, tickers, flags.workers, func(ctx context.Context, t string) error {
					start := time.Now()
					var failed error
					for _, y := range years {
						if err := a.services.FetchFinancialsByYear(ctx, y, t); err != nil {
							log.Info().Str("ticker", t).Int("year", y).Err(err).Msg("financials unavailable")
							failed = err
						}
					}
					progress.TickerDone(t, scoring.StageFetch, failed, time.Since(start))
					return failed
				})
				progress.Finish()
				return summarize("financials", len(tickers), errs)
			}),
		},
	)
	return cmd
}

// summarize logs the outcome and fails only when every item failed.
func summarize(what string, total int, errs []error) error {
	failed := async.Failed(errs)
	log.Info().Str("sync", what).Int("total", total).Int("failed", failed).Msg("sync complete")
	if total > 0 && failed == total {
		for _, err := range errs {
			if err != nil {
				return fmt.Errorf("sync %s: all %d items failed: %w", what, total, err)
			}
		}
	}
	return nil
}
