/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/notekeep/apiserver/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 20 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the notekeep API server",
	Long: `Starts the notekeep API server. Usage:

	notekeep server [--config notekeep.yaml]
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig()
		if err != nil {
			fail("failed to load config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			fail("invalid configuration:\n%v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			fail("failed to start server: %v", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", "error", err)
				_ = srv.Shutdown(context.Background())
				fail("server error: %v", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown", "error", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
