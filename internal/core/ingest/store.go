package ingest

import "context"

// VectorStore writes records keyed by id. Upsert must overwrite an existing
// record with the same id so repeated runs never duplicate vectors.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Ping(ctx context.Context) error
	Close() error
}
