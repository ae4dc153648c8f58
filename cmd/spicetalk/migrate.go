package main

import (
	"fmt"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/cli"
	"github.com/Veraticus/the-spice-must-talk/internal/storage"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			di := newInjector(appConfig)
			defer shutdown(di)

			// Opening the store applies pending migrations.
			store, err := do.Invoke[*storage.SQLiteStorage](di)
			if err != nil {
				return err
			}

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			if status {
				fmt.Fprintf(out, "%s schema version %d (expected %d)\n", appConfig.Database.Path, version, storage.ExpectedSchemaVersion)
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", version)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "only print the schema version")
	return cmd
}
