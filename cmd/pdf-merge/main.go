// Command pdf-merge merges all PDFs of a directory into one document,
// optionally compressing the result with Ghostscript.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/pdfmerge/internal/config"
	"github.com/Lllllllleong/pdfmerge/internal/gcp"
	"github.com/Lllllllleong/pdfmerge/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	exeDir, err := config.ExecutableDir()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := config.FromArgs(args, exeDir, os.LookupEnv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mergeAndPublish(ctx, cfg, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Done.")
	return 0
}

func mergeAndPublish(ctx context.Context, cfg config.Config, stdout io.Writer, logger *slog.Logger) error {
	var bucket, object string
	if cfg.Publish != "" {
		var err error
		if bucket, object, err = gcp.ParseGCSURI(cfg.Publish); err != nil {
			return err
		}
	}

	res, err := services.NewPipeline(stdout, logger).Run(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Publish == "" {
		return nil
	}

	store, err := gcp.NewStorageStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintln(stdout, "Upload PDF...")
	job, err := services.NewPublisher(store, nil, nil).Publish(ctx, logger, "", res, bucket, object)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Uploaded to %s\n", job.OutputURI)
	return nil
}
