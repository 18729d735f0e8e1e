package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recital/internal/config"
	"recital/internal/recitals"
)

func newContentCommand(ctx *commandContext) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Manage stored audio content",
	}

	contentCmd.AddCommand(newContentSweepCommand(ctx))

	return contentCmd
}

func newContentSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove segment files with no metadata row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *recitals.Store) error {
				removed, err := store.SweepOrphanedSegments(cmd.Context(), cfg.Paths.DataDir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(removed) == 0 {
					fmt.Fprintln(out, "No orphaned segment files found")
					return nil
				}
				for _, name := range removed {
					fmt.Fprintf(out, "Removed %s\n", name)
				}
				fmt.Fprintf(out, "Removed %d orphaned segment file(s)\n", len(removed))
				return nil
			})
		},
	}
}
