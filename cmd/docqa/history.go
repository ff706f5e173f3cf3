package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func historyCMD() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently indexed sessions from the Postgres ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := startApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Ledger == nil {
				return fmt.Errorf("POSTGRES_DSN is not configured")
			}

			sessions, err := app.Ledger.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")
	return cmd
}
