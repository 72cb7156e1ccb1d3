package cmd

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pathwise/pathwise/internal/ingest"
)

func runSeed(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.String("file", "", "source file to ingest (required)")
	format := fs.String("format", ingest.FormatJSON, "source format: json or jsonl")
	collection := fs.String("collection", "", "target collection (default: configured)")
	rootDir := fs.String("root", "", "root directory for filename records")
	parallel := fs.Int("parallel", 0, "max batches processed concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("seed: -file is required")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	records, err := ingest.ParseSource(f, *format)
	if err != nil {
		return err
	}

	opts := []ingest.Option{
		ingest.WithBatchSize(a.Config.BatchSize),
		ingest.WithLogger(logger),
	}
	if *rootDir != "" {
		root, err := os.OpenRoot(*rootDir)
		if err != nil {
			return fmt.Errorf("opening root directory: %w", err)
		}
		defer root.Close()
		opts = append(opts, ingest.WithRoot(root))
	}
	if *parallel > 1 {
		opts = append(opts, ingest.WithParallelism(*parallel))
	}

	pipeline, err := ingest.NewPipeline(a.Embedding, a.Store, opts...)
	if err != nil {
		return err
	}

	target := a.Config.Collection
	if *collection != "" {
		target = *collection
		if err := a.Store.EnsureCollection(ctx, target, a.Config.EmbedDimension); err != nil {
			return err
		}
	}

	if info, err := a.Store.CollectionStats(ctx, target); err == nil {
		logger.Debug("collection before seeding",
			"collection", info.Name, "records", info.Records, "dimension", info.Dimension)
	}

	report, err := pipeline.Seed(ctx, target, records)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d records into %q: %d/%d batches succeeded\n",
		report.Records, target, report.Succeeded, report.Batches)
	if !report.Ok() {
		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "  failed %s\n", f)
		}
		return fmt.Errorf("%d of %d batches failed", report.Failed, report.Batches)
	}
	return nil
}
