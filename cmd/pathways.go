package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pathwise/pathwise/internal/app"
	"github.com/pathwise/pathwise/internal/ingest"
	"github.com/pathwise/pathwise/internal/retrieval"
)

func runPathways(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("pathways", flag.ContinueOnError)
	file := fs.String("file", "", "pathway dataset to seed (json)")
	topK := fs.Int("k", 0, "number of similar cases to retrieve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if *file != "" {
		return seedPathways(ctx, a, *file)
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("pathways: a question or -file is required")
	}

	var opts []retrieval.Option
	if *topK > 0 {
		opts = append(opts, retrieval.WithTopK(*topK))
	}
	results, err := a.Retriever.Pathways(ctx, question, opts...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No similar cases found.")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%s (similarity %.3f)\n  %s\n", r.Key, r.Similarity, r.Text)
		for _, ann := range r.Annotations {
			fmt.Printf("  -> %s: %s (%s)\n", ann.Kind, ann.Target, ann.Outcome)
		}
	}
	return nil
}

func seedPathways(ctx context.Context, a *app.App, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening pathway dataset: %w", err)
	}
	defer f.Close()

	var data ingest.PathwayData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decoding pathway dataset: %w", err)
	}

	report, err := a.Pipeline.SeedPathways(ctx, a.Store, a.Config.Collection, data)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d subjects, %d treatments, %d pathway edges into %q\n",
		report.Records, len(data.Treatments), len(data.Records), a.Config.Collection)
	return nil
}
