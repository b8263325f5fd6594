package ingest

import (
	"context"
	"fmt"
	"time"

	"portfolio-rag/config"
	core "portfolio-rag/internal/core/ingest"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusLoading               Status = "LOADING"
	StatusChunking              Status = "CHUNKING"
	StatusEmbeddingAndUpserting Status = "EMBEDDING_AND_UPSERTING"
	StatusCompleted             Status = "COMPLETED"
	StatusFailed                Status = "FAILED"
)

// ConditionNoContent is set on a completed run whose document had no text.
const ConditionNoContent = "NO_CONTENT_EXTRACTED"

type FailedChunk struct {
	ChunkIndex int        `json:"chunk_index"`
	SourceID   string     `json:"source_id"`
	Batch      int        `json:"batch"`
	Stage      core.Stage `json:"stage"`
	Error      string     `json:"error"`
}

// Summary is the outcome of one run. It is always returned, also when the
// run failed, so callers can report partial progress.
type Summary struct {
	RunID          string        `json:"run_id"`
	Document       string        `json:"document"`
	Namespace      string        `json:"namespace"`
	Status         Status        `json:"status"`
	Condition      string        `json:"condition,omitempty"`
	PagesProcessed int           `json:"pages_processed"`
	ChunksCreated  int           `json:"chunks_created"`
	ChunksUpserted int           `json:"chunks_upserted"`
	ChunksFailed   int           `json:"chunks_failed"`
	FailedIDs      []string      `json:"failed_ids"`
	FailedChunks   []FailedChunk `json:"failed_chunks,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

type Options struct {
	Chunk     core.ChunkOptions
	Upsert    core.UpserterOptions
	Namespace string
}

// Pipeline runs Load -> Chunk -> Identify -> Embed+Upsert for one document
// at a time. Nothing is kept between runs; the store is the only state.
type Pipeline struct {
	store     core.VectorStore
	upserter  *core.Upserter
	chunk     core.ChunkOptions
	namespace string
	load      func(ctx context.Context, path string) (*core.Document, error)
}

func NewPipeline(embedder core.Embedder, store core.VectorStore, opts Options) (*Pipeline, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("%w: default namespace is required", apperror.ErrConfiguration)
	}
	upserter, err := core.NewUpserter(embedder, store, opts.Upsert)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		store:     store,
		upserter:  upserter,
		chunk:     opts.Chunk,
		namespace: opts.Namespace,
		load:      core.LoadDocument,
	}, nil
}

// Run ingests the document at path into namespace (the configured default
// when empty). A document without text completes with ConditionNoContent and
// ErrNoContentExtracted. Any failed chunk makes the run FAILED; the error
// then joins the per-batch errors.
func (p *Pipeline) Run(ctx context.Context, path, namespace string) (Summary, error) {
	if namespace == "" {
		namespace = p.namespace
	}
	started := time.Now()
	s := Summary{
		RunID:     uuid.NewString(),
		Document:  path,
		Namespace: namespace,
		FailedIDs: []string{},
	}
	log := logger.For(config.ModuleIngest).WithFields(logrus.Fields{
		"run_id":    s.RunID,
		"namespace": namespace,
		"document":  path,
	})
	finish := func(status Status, err error) (Summary, error) {
		s.Status = status
		s.Duration = time.Since(started)
		if err != nil {
			s.Error = err.Error()
		}
		entry := log.WithFields(logrus.Fields{
			"status":          s.Status,
			"pages":           s.PagesProcessed,
			"chunks_created":  s.ChunksCreated,
			"chunks_upserted": s.ChunksUpserted,
			"chunks_failed":   s.ChunksFailed,
			"duration":        s.Duration.String(),
		})
		if status == StatusFailed {
			entry.WithError(err).Error("ingestion failed")
		} else {
			entry.Info("ingestion finished")
		}
		return s, err
	}

	s.Status = StatusLoading
	log.WithField("state", s.Status).Info("state change")
	doc, err := p.load(ctx, path)
	if err != nil {
		return finish(StatusFailed, err)
	}
	s.PagesProcessed = len(doc.Pages)

	s.Status = StatusChunking
	log.WithField("state", s.Status).Info("state change")
	chunks, err := core.BuildChunks(doc, p.chunk)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("%w: %v", apperror.ErrConfiguration, err))
	}
	core.AssignSourceIDs(doc.Identity(), chunks)
	s.ChunksCreated = len(chunks)
	if len(chunks) == 0 {
		s.Condition = ConditionNoContent
		return finish(StatusCompleted, fmt.Errorf("%w: %s", apperror.ErrNoContentExtracted, path))
	}

	s.Status = StatusEmbeddingAndUpserting
	log.WithFields(logrus.Fields{"state": s.Status, "chunks": len(chunks)}).Info("state change")
	report, err := p.upserter.Upsert(ctx, core.UpsertRequest{
		RunID:     s.RunID,
		Namespace: namespace,
		Document:  doc,
		Chunks:    chunks,
	})
	s.ChunksUpserted = report.ChunksUpserted
	s.ChunksFailed = len(report.Failed)
	s.FailedIDs = report.FailedIDs()
	for _, f := range report.Failed {
		s.FailedChunks = append(s.FailedChunks, FailedChunk{
			ChunkIndex: f.Index,
			SourceID:   f.SourceID,
			Batch:      f.Batch,
			Stage:      f.Stage,
			Error:      f.Err.Error(),
		})
	}
	if err != nil || s.ChunksFailed > 0 {
		return finish(StatusFailed, err)
	}
	return finish(StatusCompleted, nil)
}

// Ping checks the vector store.
func (p *Pipeline) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

func (p *Pipeline) Close() error {
	p.upserter.Release()
	return p.store.Close()
}
