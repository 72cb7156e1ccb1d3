package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate when
// GEMINI_API_KEY is set. Tests mutate single fields from this base.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderGemini,
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    DefaultEmbedderModel,
		MaxTokens:        400,
		Collection:       DefaultCollection,
		EmbedDimension:   DefaultEmbedDimension,
		BatchSize:        DefaultBatchSize,
		TopK:             DefaultTopK,
		EmbedTimeout:     30 * time.Second,
		QueryTimeout:     10 * time.Second,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "pathwise",
		PostgresPassword: "pathwise_dev_password",
		PostgresDBName:   "pathwise",
		PostgresSSLMode:  "disable",
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.MaxTokens = 0 },
			wantErr: ErrInvalidMaxTokens,
		},
		{
			name:    "collection with SQL metacharacters",
			mutate:  func(c *Config) { c.Collection = "knowledge; DROP TABLE" },
			wantErr: ErrInvalidCollection,
		},
		{
			name:    "uppercase collection",
			mutate:  func(c *Config) { c.Collection = "Knowledge" },
			wantErr: ErrInvalidCollection,
		},
		{
			name:    "zero dimension",
			mutate:  func(c *Config) { c.EmbedDimension = 0 },
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "dimension past hnsw index limit",
			mutate:  func(c *Config) { c.EmbedDimension = 2001 },
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.BatchSize = -1 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "bogus ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "maybe" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
		{
			name:    "ollama provider without host",
			mutate:  func(c *Config) { c.Provider = ProviderOllama; c.OllamaHost = "" },
			wantErr: ErrInvalidOllamaHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MissingGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}
