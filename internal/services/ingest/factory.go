package ingest

import (
	"context"
	"fmt"
	"time"

	"portfolio-rag/config"
	core "portfolio-rag/internal/core/ingest"
	"portfolio-rag/pkg/apperror"
)

// NewEmbedder builds the embedding provider selected by config.Cfg,
// rate limited when ingest.embed_rps is set.
func NewEmbedder() (core.Embedder, error) {
	cfg := config.Cfg.Embedding
	var (
		embedder core.Embedder
		err      error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder, err = core.NewOpenAIEmbedder(cfg.Key, cfg.Model, cfg.BaseURL)
	case config.ProviderCompatible:
		embedder, err = core.NewCompatibleEmbedder(cfg.BaseURL, cfg.Key, cfg.Model, config.Cfg.Ingest.BatchSize)
	default:
		err = fmt.Errorf("%w: unknown embedding provider %q", apperror.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return core.NewRateLimitedEmbedder(embedder, config.Cfg.Ingest.EmbedRPS, config.Cfg.Ingest.EmbedBurst), nil
}

// NewStore builds the vector store selected by config.Cfg.
func NewStore(ctx context.Context) (core.VectorStore, error) {
	cfg := config.Cfg.VectorStore
	switch cfg.Backend {
	case config.BackendMilvus:
		return core.NewMilvusStore(ctx, core.MilvusOptions{
			Address:         cfg.Address,
			Collection:      cfg.Collection,
			Dimension:       config.Cfg.Embedding.Dimension,
			MetricType:      cfg.IndexHNSWConfig.MetricType,
			M:               cfg.IndexHNSWConfig.M,
			EfConstruction:  cfg.IndexHNSWConfig.EfConstruction,
			ConnectAttempts: 10,
			ConnectDelay:    3 * time.Second,
			ConnectTimeout:  5 * time.Second,
		})
	case config.BackendChromem:
		return core.NewChromemStore(cfg.Path, cfg.Collection)
	default:
		return nil, fmt.Errorf("%w: unknown vector store backend %q", apperror.ErrConfiguration, cfg.Backend)
	}
}

// OptionsFromConfig maps config.Cfg.Ingest onto pipeline options.
func OptionsFromConfig() Options {
	cfg := config.Cfg.Ingest
	return Options{
		Chunk: core.ChunkOptions{
			Size:     cfg.ChunkSize,
			Overlap:  cfg.ChunkOverlap,
			Strategy: cfg.Strategy,
		},
		Upsert: core.UpserterOptions{
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
			Retry: core.RetryPolicy{
				MaxAttempts: cfg.MaxAttempts,
				BaseDelay:   cfg.BaseDelay,
				CallTimeout: cfg.CallTimeout,
			},
			PreviewChars: cfg.PreviewChars,
			Source:       cfg.Source,
		},
		Namespace: cfg.Namespace,
	}
}

// NewFromConfig wires embedder, store and pipeline from config.Cfg.
func NewFromConfig(ctx context.Context) (*Pipeline, error) {
	embedder, err := NewEmbedder()
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(embedder, store, OptionsFromConfig())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return p, nil
}
