package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	core "portfolio-rag/internal/core/ingest"
	"portfolio-rag/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder fails every call while failing is true for a text containing
// failMarker.
type stubEmbedder struct {
	mu         sync.Mutex
	failMarker string
	calls      int
}

func (e *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.failMarker != "" && strings.Contains(t, e.failMarker) {
			return nil, errors.New("rate limited")
		}
		out[i] = []float32{1, float32(len(t)), float32(i + 1)}
	}
	return out, nil
}

func testOptions(batch int) Options {
	return Options{
		Chunk: core.ChunkOptions{Size: 600, Overlap: 100},
		Upsert: core.UpserterOptions{
			BatchSize:    batch,
			Concurrency:  2,
			Retry:        core.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			PreviewChars: 100,
			Source:       "resume",
		},
		Namespace: "resume-v1",
	}
}

func newTestPipeline(t *testing.T, e core.Embedder, batch int) (*Pipeline, *core.ChromemStore) {
	t.Helper()
	store, err := core.NewChromemStore("", "resume_chunks")
	require.NoError(t, err)
	p, err := NewPipeline(e, store, testOptions(batch))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, store
}

func writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func letters(n int, seed byte) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + (seed+byte(i))%26
	}
	return string(b)
}

func TestRun_1200RunesGivesThreeChunks(t *testing.T) {
	p, store := newTestPipeline(t, &stubEmbedder{}, 100)
	path := writeDoc(t, "resume.txt", letters(1200, 0))

	s, err := p.Run(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, "resume-v1", s.Namespace)
	assert.Equal(t, 1, s.PagesProcessed)
	assert.Equal(t, 3, s.ChunksCreated)
	assert.Equal(t, 3, s.ChunksUpserted)
	assert.Empty(t, s.FailedIDs)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 3, store.Count("resume-v1"))
}

func TestRun_IsIdempotent(t *testing.T) {
	p, store := newTestPipeline(t, &stubEmbedder{}, 2)
	path := writeDoc(t, "resume.txt", letters(800, 1)+"\f"+letters(900, 2))

	first, err := p.Run(context.Background(), path, "ns")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), path, "ns")
	require.NoError(t, err)

	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.ChunksCreated, store.Count("ns"))
}

func TestRun_FailedBatchIsReported(t *testing.T) {
	// 6 chunks in batches of 2; chunk 2 starts at offset 1000 and contains
	// the marker, so batch 2 fails on every attempt.
	text := []rune(letters(3100, 0))
	copy(text[1150:], []rune("MARKER"))
	embedder := &stubEmbedder{failMarker: "MARKER"}
	p, store := newTestPipeline(t, embedder, 2)
	path := writeDoc(t, "resume.txt", string(text))

	s, err := p.Run(context.Background(), path, "ns")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrEmbeddingProvider)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, 6, s.ChunksCreated)
	assert.Equal(t, 4, s.ChunksUpserted)
	assert.Equal(t, 2, s.ChunksFailed)
	require.Len(t, s.FailedChunks, 2)
	assert.Equal(t, 2, s.FailedChunks[0].ChunkIndex)
	assert.Equal(t, 3, s.FailedChunks[1].ChunkIndex)
	assert.Equal(t, 2, s.FailedChunks[0].Batch)
	assert.Equal(t, core.StageEmbedding, s.FailedChunks[0].Stage)
	assert.Equal(t, []string{s.FailedChunks[0].SourceID, s.FailedChunks[1].SourceID}, s.FailedIDs)
	assert.Equal(t, 4, store.Count("ns"))
	// 2 successful batches once, the failing one three times
	assert.Equal(t, 5, embedder.calls)
}

func TestRun_EmptyDocument(t *testing.T) {
	p, store := newTestPipeline(t, &stubEmbedder{}, 10)
	path := writeDoc(t, "scan.txt", "\f  \f")

	s, err := p.Run(context.Background(), path, "ns")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNoContentExtracted)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, ConditionNoContent, s.Condition)
	assert.Equal(t, 3, s.PagesProcessed)
	assert.Zero(t, s.ChunksCreated)
	assert.Zero(t, store.Count("ns"))
}

func TestRun_MissingDocument(t *testing.T) {
	p, _ := newTestPipeline(t, &stubEmbedder{}, 10)

	s, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "ns")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDocumentNotFound)
	assert.Equal(t, StatusFailed, s.Status)
	assert.NotEmpty(t, s.Error)
	assert.Zero(t, s.PagesProcessed)
}

func TestNewPipeline_RequiresNamespace(t *testing.T) {
	store, err := core.NewChromemStore("", "c")
	require.NoError(t, err)
	opts := testOptions(1)
	opts.Namespace = ""

	_, err = NewPipeline(&stubEmbedder{}, store, opts)
	assert.ErrorIs(t, err, apperror.ErrConfiguration)
}
