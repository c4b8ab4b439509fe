package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kavka/kavka/internal/server"
	"github.com/kavka/kavka/internal/signal"
	"github.com/kavka/kavka/pkg/logger"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API for the presentation layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("kavka starting",
				zap.String("version", version),
				zap.String("config", cfg.String()),
			)

			srv := server.NewServer(cfg, svc)
			if err := srv.Start(); err != nil {
				return err
			}

			logger.Info("kavka started successfully")

			signal.WaitForShutdown(cmd.Context())

			logger.Info("shutting down gracefully...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Error("failed to stop server", zap.Error(err))
			}

			logger.Info("kavka stopped")
			return nil
		},
	}
}
