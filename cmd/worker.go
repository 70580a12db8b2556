/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/notekeep/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Auto-tags newly created notes",
	Long: `Consumes note events from the configured broker and asks Gemini for
tags on every new note that has none. Usage:

	notekeep worker [--config notekeep.yaml]
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig()
		if err != nil {
			fail("failed to load config: %v", err)
		}
		if err := cfg.ValidateWorker(); err != nil {
			fail("invalid configuration:\n%v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		worker, err := server.NewWorker(ctx, cfg, logger)
		if err != nil {
			fail("failed to start worker: %v", err)
		}
		defer worker.Close()

		if err := worker.Run(ctx); err != nil {
			logger.Error("worker stopped", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
