package main

import (
	"github.com/spf13/cobra"

	"github.com/fire-team/ticket-router/internal/db"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := db.New(ctx, opts.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			opts.logger.Info().Msg("schema applied")
			return nil
		},
	}
}
