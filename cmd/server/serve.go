package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"socialid/internal/auth/handler"
	"socialid/internal/platform/config"
	"socialid/internal/platform/httpserver"
	"socialid/internal/platform/postgres"
)

// NewServeCmd runs the HTTP API. With the memory job backend the workers
// always run in-process, since no other process can reach the queue.
func NewServeCmd(load configLoader) *cobra.Command {
	var withWorker, migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			runWorkers := withWorker || cfg.Jobs.Backend == config.JobBackendMemory
			a, err := newApp(ctx, cfg, logger, runWorkers)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := postgres.Migrate(ctx, a.db); err != nil {
					return err
				}
			}

			h := handler.New(a.service, a.tokens, logger,
				handler.WithSecureCookie(cfg.HTTP.SecureCookie),
				handler.WithCookieMaxAge(cfg.Session.TTL),
			)
			srv := httpserver.New(cfg.HTTP.Addr, newRouter(h, a.health, a.metrics, logger), cfg.HTTP.ReadHeaderTimeout)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return httpserver.Run(gctx, srv, cfg.HTTP.ShutdownTimeout, logger)
			})
			if runWorkers {
				g.Go(func() error {
					return a.runner.Run(gctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the job workers in this process")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}
