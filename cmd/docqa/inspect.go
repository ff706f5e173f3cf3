package main

import (
	"github.com/spf13/cobra"
)

func inspectCMD() *cobra.Command {
	var mimeType string
	var logLimit int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Extract and index a document, then print its diagnostics and pipeline log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := startApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			upload, err := uploadFile(ctx, app, args[0], mimeType)
			if err != nil {
				return err
			}
			diag, err := app.CatalogUC.InspectSession(upload.SessionID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"upload":  upload,
				"session": diag,
				"logs":    app.CatalogUC.RecentLogs(logLimit),
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "type", "", "content type of the file (default: from the extension)")
	cmd.Flags().IntVar(&logLimit, "logs", 20, "number of pipeline log entries to print")
	return cmd
}
