package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/sawpanic/edgarscore/internal/interfaces/http"
	"github.com/sawpanic/edgarscore/internal/interfaces/http/handlers"
)

func newServeCmd(g *globals) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring API with /health and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			serverCfg := g.cfg.HTTP
			if cmd.Flags().Changed("host") {
				serverCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				serverCfg.Port = port
			}

			runCfg, err := g.cfg.Scoring.Build()
			if err != nil {
				return err
			}

			a, err := openApp(ctx, g.cfg, g.offline)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []handlers.Option{
				handlers.WithVersion(version),
				handlers.WithScoringConfig(runCfg),
				handlers.WithScoringOptions(a.scorerOptions()...),
				handlers.WithHealthCheck("redis", a.cache.Ping),
			}
			if a.db.IsEnabled() {
				opts = append(opts, handlers.WithHealthCheck("postgres", a.db.Health().Ping))
			}

			server, err := httpapi.NewServer(serverCfg, handlers.NewHandlers(a.services, opts...), a.metrics)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info().Msg("HTTP server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (overrides HTTP_PORT and config)")
	return cmd
}
