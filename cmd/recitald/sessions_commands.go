package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recital/internal/config"
	"recital/internal/recitals"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage recital sessions",
	}

	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsDisavowCommand(ctx))

	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var includeDisavowed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recital sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *recitals.Store) error {
				var statuses []recitals.Status
				for _, raw := range strings.Split(statusFilter, ",") {
					raw = strings.TrimSpace(raw)
					if raw == "" {
						continue
					}
					status, ok := recitals.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				sessions, err := store.ListSessions(cmd.Context(), includeDisavowed, statuses...)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions found")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					rows = append(rows, []string{
						session.ID,
						string(session.Status),
						yesNo(session.Disavowed),
						session.LightAudioFilename,
						session.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Disavowed", "Artifact", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (active, ended, finalized)")
	cmd.Flags().BoolVar(&includeDisavowed, "all", false, "Include disavowed sessions")
	return cmd
}

func newSessionsDisavowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "disavow <session-id>",
		Short: "Withdraw a session from normal visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *recitals.Store) error {
				sessionID := strings.TrimSpace(args[0])
				updated, err := store.Disavow(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if !updated {
					return fmt.Errorf("session %s not found", sessionID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s disavowed\n", sessionID)
				return nil
			})
		},
	}
}
