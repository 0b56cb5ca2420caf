package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/leandrotocalini/promptlab/internal/lifecycle"
	"github.com/leandrotocalini/promptlab/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithLogger(a.logger),
				server.WithLogs(a.logs),
				server.WithRateLimit(cfg.Limits.MaxCallsPerHour),
			}
			if a.ledger != nil {
				opts = append(opts, server.WithUsage(a.ledger))
			}
			srv := server.New(a.orch, a.catalog, a.history, opts...)

			mgr := lifecycle.NewManager(lifecycle.DefaultShutdownConfig(), a.logger)
			mgr.OnShutdown("http", srv.Shutdown)
			mgr.OnShutdown("ledger", func(context.Context) error { return a.Close() })

			a.logger.Info("starting promptlab",
				"version", version,
				"addr", cfg.Server.Addr,
				"models", a.catalog.Len(),
				"ledger", cfg.Ledger.Path != "",
			)

			if code := mgr.Run(func(ctx context.Context) error {
				return srv.ListenAndServe(cfg.Server.Addr)
			}); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	return cmd
}
