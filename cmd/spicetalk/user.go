package main

import (
	"fmt"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/cli"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/storage"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage registered users",
	}
	cmd.AddCommand(userAddCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "add <id> <username>",
		Short: "Register or update a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			di := newInjector(appConfig)
			defer shutdown(di)

			store, err := do.Invoke[*storage.SQLiteStorage](di)
			if err != nil {
				return err
			}

			user := &model.User{ID: args[0], Username: args[1], Email: email}
			if err := store.SaveUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("failed to save user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved user %s (%s)", user.ID, user.Username)))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "contact email")
	return cmd
}
