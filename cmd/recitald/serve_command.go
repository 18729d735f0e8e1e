package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recital/internal/daemon"
	"recital/internal/logging"
	"recital/internal/recitals"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recital backend daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", cfg.LogFilePath()},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := recitals.Open(cfg)
			if err != nil {
				logger.Error("open store", logging.Error(err))
				return err
			}
			defer store.Close()

			d, err := daemon.New(cfg, store, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			logger.Info("recitald shutting down")
			return nil
		},
	}
}
