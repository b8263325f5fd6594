package ingest

import "context"

// Embedder turns texts into vectors. Implementations must be safe for
// concurrent use and return vectors in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
