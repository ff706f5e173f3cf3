package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func askCMD() *cobra.Command {
	var mimeType string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <file> <question> [question...]",
		Short: "Upload a document and answer one or more questions about it",
		Args:  cobra.MinimumNArgs(2),
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
			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintf(out, "%s: %d pages, %d chunks (session %s)\n\n", upload.Filename, upload.PageCount, upload.ChunkCount, upload.SessionID)
			}

			for _, question := range args[1:] {
				res, err := app.QueryUC.Query(ctx, upload.SessionID, question)
				if err != nil {
					return fmt.Errorf("%q: %w", question, err)
				}
				if asJSON {
					if err := printJSON(out, res); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "Q: %s\n[%s via %s, %d chunks, %.2fs]\n%s\n\n",
					question, res.Category, res.Debug.BackendUsed, res.Debug.ChunkCount, res.Debug.TotalElapsed, res.Answer)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "type", "", "content type of the file (default: from the extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full query results as JSON")
	return cmd
}
