package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa/internal/infrastructure/queue/nats"
)

func watchCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session indexed events published by running API instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := startApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Publisher == nil {
				return fmt.Errorf("NATS_URL is not configured")
			}

			out := cmd.OutOrStdout()
			return app.Publisher.SubscribeSessionIndexed(ctx, func(_ context.Context, event nats.SessionIndexed) error {
				return printJSON(out, event)
			})
		},
	}
}
