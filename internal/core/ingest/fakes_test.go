package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeEmbedder returns a deterministic 3-dim vector per text and fails every
// call whose first text is listed in failOn. A call whose first text is in
// panicOn panics.
type fakeEmbedder struct {
	mu      sync.Mutex
	failOn  map[string]bool
	panicOn map[string]bool
	calls   map[string]int
}

func newFakeEmbedder(failOn ...string) *fakeEmbedder {
	f := &fakeEmbedder{failOn: map[string]bool{}, panicOn: map[string]bool{}, calls: map[string]int{}}
	for _, s := range failOn {
		f.failOn[s] = true
	}
	return f
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(texts) > 0 {
		f.calls[texts[0]]++
		if f.panicOn[texts[0]] {
			panic("embedder exploded")
		}
		if f.failOn[texts[0]] {
			return nil, errors.New("provider unavailable")
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, float32(i + 1)}
	}
	return out, nil
}

func (f *fakeEmbedder) callsFor(first string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[first]
}

// fakeStore keeps records by namespace and id; failures fails the first n
// Upsert calls.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]map[string]Record
	failures int
	calls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]map[string]Record{}}
}

func (s *fakeStore) Upsert(_ context.Context, namespace string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("store down")
	}
	if s.records[namespace] == nil {
		s.records[namespace] = map[string]Record{}
	}
	for _, r := range records {
		s.records[namespace][r.ID] = r
	}
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) count(namespace string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[namespace])
}
