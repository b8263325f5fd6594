package ingest

import (
	"context"
	"fmt"

	"portfolio-rag/pkg/apperror"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIEmbedder calls the hosted embeddings endpoint. SDK retries are
// disabled; the upserter owns the retry policy.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model, baseURL string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing openai key", apperror.ErrConfiguration)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: missing embedding model", apperror.ErrConfiguration)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}, nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var out openAIEmbeddingResponse
	if err := e.client.Post(ctx, "/embeddings", openAIEmbeddingRequest{Model: e.model, Input: texts}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrEmbeddingProvider, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrEmbeddingProvider, out.Error.Message)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", apperror.ErrEmbeddingProvider, len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad embedding index %d", apperror.ErrEmbeddingProvider, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for k, v := range d.Embedding {
			vec[k] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
