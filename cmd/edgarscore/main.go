package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/edgarscore/internal/config"
	applog "github.com/sawpanic/edgarscore/internal/log"
)

const (
	appName = "edgarscore"
	version = "v0.4.0"
)

// globals holds the persistent flags and the loaded config.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	offline    bool

	cfg config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Rank companies by fundamentals pulled from SEC EDGAR filings",
		Version: version,
		Long: `edgarscore downloads annual reports from SEC EDGAR, caches the extracted
facts in Redis and ranks tickers by gross profit growth, income growth,
R&D intensity, asset coverage, net income and market cap.

Results can be filtered by field ranges, printed as a table or JSON,
correlated with realized price gains, or served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (auto|console|json)")
	pf.BoolVar(&g.offline, "offline", false, "Serve from the cache only, never call EDGAR or the price provider")

	rootCmd.AddCommand(
		newScoreCmd(g),
		newBacktestCmd(g),
		newServeCmd(g),
		newFiltersCmd(),
		newSyncCmd(g),
	)
	return rootCmd
}

// load reads the dotenv file, the config file and the log flags, then
// configures logging.
func (g *globals) load(cmd *cobra.Command) error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", g.envFile, err)
		}
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := applog.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return err
	}
	g.cfg = cfg

	log.Debug().Str("command", cmd.Name()).Str("config", g.configPath).Bool("offline", g.offline).Msg("configuration loaded")
	return nil
}
