package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/edgarscore/internal/backtest"
	"github.com/sawpanic/edgarscore/internal/config"
	applog "github.com/sawpanic/edgarscore/internal/log"
	"github.com/sawpanic/edgarscore/internal/report"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// runFlags are shared by score and backtest.
type runFlags struct {
	tickers []string
	filters []string
	start   string
	end     string
	workers int
	sort    string
	format  string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.tickers, "tickers", nil, "Comma-separated tickers (default: the whole universe)")
	fs.StringArrayVar(&f.filters, "filter", nil, "Range filter name:min:max, repeatable; bounds are exclusive")
	fs.StringVar(&f.start, "start", "", "First fiscal date (YYYY-MM-DD or YYYY)")
	fs.StringVar(&f.end, "end", "", "Last fiscal date (YYYY-MM-DD or YYYY)")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent ticker fetches")
	fs.StringVar(&f.sort, "sort", "", "Ascending sort field")
	fs.StringVar(&f.format, "format", "auto", "Output format (auto|text|json)")
}

// resolve merges the flags over the scoring section of cfg.
func (f *runFlags) resolve(cfg config.ScoringConfig) (scoring.Config, []scoring.Filter, error) {
	if f.start != "" {
		cfg.StartDate = f.start
	}
	if f.end != "" {
		cfg.EndDate = f.end
	}
	if f.workers != 0 {
		cfg.Workers = f.workers
	}
	if f.sort != "" {
		cfg.Sort = f.sort
	}
	run, err := cfg.Build()
	if err != nil {
		return run, nil, err
	}

	filters := cfg.Filters
	if len(f.filters) > 0 {
		filters, err = parseFilters(f.filters)
		if err != nil {
			return run, nil, err
		}
	}
	if _, err := scoring.CompileFilters(filters); err != nil {
		return run, nil, err
	}
	return run, filters, nil
}

func parseFilters(raw []string) ([]scoring.Filter, error) {
	filters := make([]scoring.Filter, 0, len(raw))
	for _, s := range raw {
		f, err := scoring.ParseFilter(s)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func normalizeTickers(tickers []string) []string {
	var out []string
	for _, t := range tickers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// useJSON resolves an output format against w.
func useJSON(format string, w io.Writer) (bool, error) {
	switch format {
	case "json":
		return true, nil
	case "text":
		return false, nil
	case "", "auto":
		return !applog.IsTerminal(w), nil
	}
	return false, fmt.Errorf("unknown output format %q", format)
}

// runScore loads the universe when no tickers are given so progress has a
// total, then scores.
func runScore(ctx context.Context, a *app, flags *runFlags) ([]scoring.ScoreEntry, error) {
	runCfg, filters, err := flags.resolve(a.cfg.Scoring)
	if err != nil {
		return nil, err
	}

	tickers := normalizeTickers(flags.tickers)
	if len(tickers) == 0 {
		if tickers, err = a.services.GetTickerList(ctx); err != nil {
			return nil, fmt.Errorf("failed to load ticker list: %w", err)
		}
	}

	progress := applog.NewProgress("score", len(tickers), 5*time.Second)
	defer progress.Finish()
	return a.scorer(runCfg, progress).ComputeScore(ctx, tickers, filters)
}

func newScoreCmd(g *globals) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score tickers and print the ranked rows",
		Example: `  edgarscore score --tickers aapl,msft,goog
  edgarscore score --filter RnDRatio:0.25:0.7 --filter grossProfitGrowth:1.1: --start 2016 --end 2020`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := useJSON(flags.format, os.Stdout)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), g.cfg, g.offline)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := runScore(cmd.Context(), a, flags)
			if err != nil {
				return err
			}
			if asJSON {
				return report.JSON(os.Stdout, report.NewScoreDocument(entries))
			}
			return report.Scores(os.Stdout, entries)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newBacktestCmd(g *globals) *cobra.Command {
	flags := &runFlags{}
	var buy, sell string
	var index []string

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Score tickers, then measure their gain between a buy and a sell date",
		Example: `  edgarscore backtest --start 2016 --end 2019 --buy 2020-01-02 --sell 2021-01-04
  edgarscore backtest --filter RnDRatio:0.25:0.7 --buy 2020-01-02 --sell 2021-01-04 --index spy,qqq,dia`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bt := g.cfg.Backtest
			if buy != "" {
				bt.Buy = buy
			}
			if sell != "" {
				bt.Sell = sell
			}
			if cmd.Flags().Changed("index") {
				bt.IndexTickers = normalizeTickers(index)
			}
			window, err := bt.Window()
			if err != nil {
				return err
			}
			asJSON, err := useJSON(flags.format, os.Stdout)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), g.cfg, g.offline)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := runScore(cmd.Context(), a, flags)
			if err != nil {
				return err
			}
			res := backtest.New(a.services).Evaluate(cmd.Context(), entries, window, bt.IndexTickers)
			if asJSON {
				return report.JSON(os.Stdout, report.NewBacktestDocument(res))
			}
			return report.Backtest(os.Stdout, res)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&buy, "buy", "", "Buy date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sell, "sell", "", "Sell date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&index, "index", nil, "Benchmark tickers (default from config: qqq,spy)")
	return cmd
}

func newFiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the fields that can be filtered and sorted on",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range scoring.Fields() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}
