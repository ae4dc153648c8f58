package main

import (
	"errors"
	"fmt"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/cli"
	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

func historyCmd() *cobra.Command {
	var (
		userID string
		limit  int
		wipe   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear a user's mirrored conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			di := newInjector(appConfig)
			defer shutdown(di)

			mirror, err := do.Invoke[service.HistoryMirror](di)
			if errors.Is(err, errMirrorDisabled) {
				return common.NewUserError("No history is kept when session.mirror is none", err)
			}
			if err != nil {
				return err
			}

			if wipe {
				if err := mirror.ClearTurns(ctx, userID); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				fmt.Fprintln(out, cli.FormatSuccess("Cleared history for "+userID))
				return nil
			}

			turns, err := mirror.LoadTurns(ctx, userID, limit)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			fmt.Fprintln(out, cli.RenderTurns(turns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent turns to show (0 for all)")
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the stored history")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
