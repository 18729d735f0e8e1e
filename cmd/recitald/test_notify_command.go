package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recital/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify <recipient>",
		Short: "Send a test email through the configured mail relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Email.RelayURL == "" {
				return fmt.Errorf("mail relay not configured; set email.relay_url in the config file")
			}

			notifier := notifications.NewService(cfg)
			if err := notifier.TestNotification(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", args[0])
			return nil
		},
	}
}
