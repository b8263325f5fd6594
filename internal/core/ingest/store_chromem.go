package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"portfolio-rag/pkg/apperror"

	"github.com/philippgille/chromem-go"
)

// ChromemStore is an embedded vector store: one chromem collection per
// namespace, optionally persisted to disk. Useful for local runs without a
// Milvus deployment.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	workers    int

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

var errPrecomputedOnly = errors.New("chromem store only accepts precomputed embeddings")

// NewChromemStore opens a persistent DB at path, or an in-memory DB when
// path is empty.
func NewChromemStore(path, collection string) (*ChromemStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: chromem collection is required", apperror.ErrConfiguration)
	}
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", apperror.ErrVectorStore, path, err)
		}
	}
	return &ChromemStore{
		db:          db,
		collection:  collection,
		workers:     4,
		collections: map[string]*chromem.Collection{},
	}, nil
}

func (s *ChromemStore) collectionFor(namespace string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[namespace]; ok {
		return c, nil
	}
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errPrecomputedOnly }
	c, err := s.db.GetOrCreateCollection(s.collection+"__"+namespace, map[string]string{"namespace": namespace}, noEmbed)
	if err != nil {
		return nil, err
	}
	s.collections[namespace] = c
	return c, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	c, err := s.collectionFor(namespace)
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata.Map(),
			Embedding: r.Vector,
			Content:   r.Metadata.Text,
		}
	}
	if err := c.AddDocuments(ctx, docs, s.workers); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}
	return nil
}

// Count returns the number of records stored under namespace.
func (s *ChromemStore) Count(namespace string) int {
	c, err := s.collectionFor(namespace)
	if err != nil {
		return 0
	}
	return c.Count()
}

// Get loads one record back, with the vector as stored (normalized).
func (s *ChromemStore) Get(ctx context.Context, namespace, id string) (Record, error) {
	c, err := s.collectionFor(namespace)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}
	doc, err := c.GetByID(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}
	return Record{
		ID:       doc.ID,
		Vector:   doc.Embedding,
		Metadata: MetadataFromMap(doc.Metadata, doc.Content),
	}, nil
}

func (s *ChromemStore) Ping(context.Context) error {
	return nil
}

func (s *ChromemStore) Close() error {
	return nil
}

var _ VectorStore = (*ChromemStore)(nil)
