// Package embed maps text spans to fixed-dimension vectors through an
// OpenAI-compatible embedding endpoint.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
)

// ErrService is returned when the embedding provider fails (network, auth,
// rate limit). Calls are not retried here.
var ErrService = errors.New("embedding service error")

// Service wraps a langchaingo embedder. The zero value is not usable; build
// one with NewOpenAI, or wrap any embeddings.Embedder for tests.
type Service struct {
	embedder embeddings.Embedder
}

// NewOpenAI builds an embedding service against the configured provider.
// Chunk batches are sent in requests of cfg.BatchSize strings.
func NewOpenAI(cfg *config.ProviderConfig) (*Service, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	log.Debug().
		Str("base_url", cfg.BaseURL).
		Str("embedding_model", cfg.EmbeddingModel).
		Int("batch_size", cfg.BatchSize).
		Msg("embedding service ready")
	return &Service{embedder: embedder}, nil
}

// Wrap adapts an existing embedder, used by tests to inject fakes.
func Wrap(e embeddings.Embedder) *Service {
	return &Service{embedder: e}
}

// EmbedTexts returns one vector per input string, order-preserving. All
// vectors must share one dimension; a mismatch means the provider returned
// an inconsistent batch and the whole call fails.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrService, len(vectors), len(texts))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrService, i, len(v), dim)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string with the same model as the corpus.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	return vector, nil
}
