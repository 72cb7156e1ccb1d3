package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

// collectionNamePattern restricts collection names to safe SQL identifiers.
// Collection names become table names, so this is enforced here and again
// at the store boundary.
var collectionNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider validation
	validProviders := []string{ProviderGemini, ProviderOllama, ProviderOpenAI}
	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q, must be one of: %s",
			ErrInvalidProvider, c.Provider, strings.Join(validProviders, ", "))
	}

	// API key validation depends on the selected provider; the keys are
	// read by the Genkit plugins directly, so only presence is checked.
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	}

	// Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Knowledge base validation
	if !collectionNamePattern.MatchString(c.Collection) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollection, c.Collection, collectionNamePattern)
	}
	// Capped at 2000: pgvector's HNSW index, which every collection
	// gets, rejects wider vectors.
	if c.EmbedDimension < 1 || c.EmbedDimension > 2000 {
		return fmt.Errorf("%w: must be between 1 and 2,000 (hnsw index limit), got %d",
			ErrInvalidDimension, c.EmbedDimension)
	}
	if c.BatchSize < 1 || c.BatchSize > 2048 {
		return fmt.Errorf("%w: must be between 1 and 2048, got %d", ErrInvalidBatchSize, c.BatchSize)
	}

	// PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q, must be one of: %s",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, strings.Join(validSSLModes, ", "))
	}

	return nil
}
