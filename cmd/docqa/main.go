package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docqa/internal/bootstrap"
	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/observability/logging"
)

const serviceName = "docqa-cli"

func main() {
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about a PDF or image from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(askCMD(), inspectCMD(), watchCMD(), historyCMD())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// startApp builds the engine with logs on stderr so stdout carries only results.
func startApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)
	return bootstrap.New(ctx, cfg, serviceName, logger)
}

func uploadFile(ctx context.Context, app *bootstrap.App, path, mimeType string) (*domain.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	return app.IngestUC.Upload(ctx, filepath.Base(path), mimeType, f)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
