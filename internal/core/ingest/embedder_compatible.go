package ingest

import (
	"context"
	"fmt"

	"portfolio-rag/pkg/apperror"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// CompatibleEmbedder talks to OpenAI-compatible embedding hosts (Ollama,
// vLLM, LocalAI) through langchaingo.
type CompatibleEmbedder struct {
	embedder embeddings.Embedder
}

// NewCompatibleEmbedder uses token "none" when the host needs no auth.
func NewCompatibleEmbedder(baseURL, token, model string, batchSize int) (*CompatibleEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: missing embedding base url", apperror.ErrConfiguration)
	}
	if token == "" {
		token = "none"
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(token),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrConfiguration, err)
	}
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrConfiguration, err)
	}
	return &CompatibleEmbedder{embedder: embedder}, nil
}

func (e *CompatibleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrEmbeddingProvider, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", apperror.ErrEmbeddingProvider, len(vectors), len(texts))
	}
	return vectors, nil
}

var _ Embedder = (*CompatibleEmbedder)(nil)
