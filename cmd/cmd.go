// Package cmd provides CLI commands for pathwise.
//
// Commands:
//   - init: run migrations and prepare the knowledge collection
//   - seed: ingest records from a JSON or JSONL source
//   - ask: answer a question grounded in the knowledge base
//   - pathways: seed or query the treatment-pathway graph
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pathwise/pathwise/internal/app"
	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/log"
)

// Execute is the main entry point for the pathwise CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "init":
		return runInit(os.Args[2:], logger)
	case "seed":
		return runSeed(os.Args[2:], logger)
	case "ask":
		return runAsk(os.Args[2:], logger)
	case "pathways":
		return runPathways(os.Args[2:], logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setupApp loads configuration and wires the application.
func setupApp(ctx context.Context, logger *slog.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("pathwise - retrieval-augmented clinical knowledge engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pathwise init                      Run migrations and prepare the collection")
	fmt.Println("  pathwise seed -file data.json      Ingest records into the knowledge base")
	fmt.Println("  pathwise ask <question>            Answer a question from the knowledge base")
	fmt.Println("  pathwise pathways -file data.json  Seed the treatment-pathway graph")
	fmt.Println("  pathwise pathways <question>       Find similar cases with their treatments")
	fmt.Println("  pathwise --version                 Show version information")
	fmt.Println("  pathwise --help                    Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required for the gemini provider (default)")
	fmt.Println("  OPENAI_API_KEY     Required for the openai provider")
	fmt.Println("  DATABASE_URL       Overrides the postgres_* configuration")
	fmt.Println("  DEBUG              Optional: enable debug logging")
}
