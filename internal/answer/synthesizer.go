// Package answer synthesizes grounded answers from retrieved context.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Fallback is returned verbatim whenever retrieval produces no
// context. No generation call is made in that case.
const Fallback = "I don't have enough information to answer that question."

// DefaultSystemPrompt frames the model as a grounded medical
// assistant.
const DefaultSystemPrompt = `You are a medical knowledge retrieval assistant who has access to a large database of medical knowledge.
Your task is to answer questions based on the provided context.
If the context does not contain enough information, you should indicate that you cannot answer the question.`

// DefaultMaxTokens bounds the generated answer.
const DefaultMaxTokens = 400

// ContextFunc supplies retrieved passages for a question. It is the
// only coupling between synthesis and retrieval.
type ContextFunc func(ctx context.Context, question string) ([]string, error)

// Synthesizer answers questions over retrieved context. Safe for
// concurrent use.
type Synthesizer struct {
	g            *genkit.Genkit
	getContext   ContextFunc
	modelName    string
	systemPrompt string
	maxTokens    int32
	logger       *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSystemPrompt replaces the default system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(s *Synthesizer) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithMaxTokens overrides the answer token budget.
func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = int32(n)
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynthesizer creates a Synthesizer generating with modelName and
// retrieving context through getContext.
func NewSynthesizer(g *genkit.Genkit, getContext ContextFunc, modelName string, opts ...Option) (*Synthesizer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if getContext == nil {
		return nil, fmt.Errorf("context retrieval function is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	s := &Synthesizer{
		g:            g,
		getContext:   getContext,
		modelName:    modelName,
		systemPrompt: DefaultSystemPrompt,
		maxTokens:    DefaultMaxTokens,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RagChat answers a question grounded in retrieved context.
//
// With no context the fixed Fallback string is returned and the model
// is never called. Otherwise the prompt is the system instruction, a
// second system turn listing each passage as a "- " bullet, and the
// raw question; the first candidate's text is the answer, empty if the
// model produced no content. Provider errors propagate unwrapped in
// meaning; there are no retries.
func (s *Synthesizer) RagChat(ctx context.Context, question string) (string, error) {
	passages, err := s.getContext(ctx, question)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	if len(passages) == 0 {
		s.logger.Debug("no context retrieved, returning fallback", "question_len", len(question))
		return Fallback, nil
	}

	response, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithSystem(s.systemPrompt),
		ai.WithMessages(
			ai.NewSystemMessage(ai.NewTextPart(contextTurn(passages))),
			ai.NewUserMessage(ai.NewTextPart(question)),
		),
		ai.WithConfig(&genai.GenerateContentConfig{MaxOutputTokens: s.maxTokens}),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return response.Text(), nil
}

// contextTurn renders retrieved passages as a bulleted system turn.
func contextTurn(passages []string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, p := range passages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(p)
	}
	return sb.String()
}
