// Package app wires configuration, storage and AI providers into the
// running application.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/pathwise/internal/answer"
	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/embedding"
	"github.com/pathwise/pathwise/internal/ingest"
	"github.com/pathwise/pathwise/internal/knowledge"
	"github.com/pathwise/pathwise/internal/retrieval"
)

// App holds all initialized components. Construct with Setup and
// release with Close.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	DBPool      *pgxpool.Pool
	Genkit      *genkit.Genkit
	Embedder    ai.Embedder
	Embedding   *embedding.Client
	Store       *knowledge.Store
	Pipeline    *ingest.Pipeline
	Retriever   *retrieval.Retriever
	Synthesizer *answer.Synthesizer

	dbCleanup func()
}

// Close releases everything Setup acquired. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}
