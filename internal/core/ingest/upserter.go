package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/logger"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

type Stage string

const (
	StageEmbedding Stage = "embedding"
	StageUpsert    Stage = "upsert"
)

type UpserterOptions struct {
	BatchSize    int
	Concurrency  int
	Retry        RetryPolicy
	PreviewChars int
	Source       string
}

// FailedChunk records why a chunk did not reach the store.
type FailedChunk struct {
	Index    int    `json:"chunk_index"`
	SourceID string `json:"source_id"`
	Batch    int    `json:"batch"`
	Stage    Stage  `json:"stage"`
	Err      error  `json:"-"`
}

type UpsertReport struct {
	Batches        int
	ChunksUpserted int
	Failed         []FailedChunk
}

// FailedIDs lists the source ids of failed chunks in chunk order.
func (r UpsertReport) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.SourceID
	}
	return ids
}

type UpsertRequest struct {
	RunID     string
	Namespace string
	Document  *Document
	Chunks    []Chunk
}

// Upserter embeds and stores chunks in batches. Batches run on a shared pool
// so concurrency stays bounded across runs; results are folded into the
// report by the calling goroutine only.
type Upserter struct {
	embedder Embedder
	store    VectorStore
	opts     UpserterOptions
	pool     *ants.Pool
}

func NewUpserter(embedder Embedder, store VectorStore, opts UpserterOptions) (*Upserter, error) {
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: upserter needs an embedder and a vector store", apperror.ErrConfiguration)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", apperror.ErrConfiguration, opts.BatchSize)
	}
	if opts.Retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: %v", apperror.ErrConfiguration, ErrInvalidMaxAttempts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: worker pool: %v", apperror.ErrConfiguration, err)
	}
	return &Upserter{embedder: embedder, store: store, opts: opts, pool: pool}, nil
}

// Release stops the worker pool.
func (u *Upserter) Release() {
	u.pool.Release()
}

type batchResult struct {
	batch    int
	chunks   []Chunk
	upserted int
	stage    Stage
	err      error
}

// Upsert embeds and stores every chunk of the request. A failing batch is
// reported and does not stop the others. The returned error joins the
// batch errors; the report is complete either way.
func (u *Upserter) Upsert(ctx context.Context, req UpsertRequest) (UpsertReport, error) {
	batches := splitBatches(req.Chunks, u.opts.BatchSize)
	report := UpsertReport{Batches: len(batches)}
	if len(batches) == 0 {
		return report, nil
	}

	log := logger.For(config.ModuleUpserter).WithFields(logrus.Fields{
		"run_id":    req.RunID,
		"namespace": req.Namespace,
	})

	results := make(chan batchResult, len(batches))
	for i, batch := range batches {
		num, chunks := i+1, batch
		if err := u.pool.Submit(func() {
			results <- u.runBatch(ctx, log, req, num, chunks)
		}); err != nil {
			results <- batchResult{batch: num, chunks: chunks, stage: StageEmbedding,
				err: fmt.Errorf("%w: submit batch %d: %v", apperror.ErrEmbeddingProvider, num, err)}
		}
	}

	var errs []error
	for range batches {
		res := <-results
		report.ChunksUpserted += res.upserted
		if res.err == nil {
			continue
		}
		errs = append(errs, res.err)
		for _, c := range res.chunks {
			report.Failed = append(report.Failed, FailedChunk{
				Index:    c.Index,
				SourceID: c.SourceID,
				Batch:    res.batch,
				Stage:    res.stage,
				Err:      res.err,
			})
		}
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Index < report.Failed[j].Index })
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })

	return report, errors.Join(errs...)
}

// runBatch always yields a result, also when a collaborator panics, so the
// collector in Upsert never waits on a worker that is gone.
func (u *Upserter) runBatch(ctx context.Context, log *logrus.Entry, req UpsertRequest, num int, chunks []Chunk) (res batchResult) {
	log = log.WithFields(logrus.Fields{"batch": num, "chunks": len(chunks)})
	res = batchResult{batch: num, chunks: chunks}
	stage, sentinel := StageEmbedding, apperror.ErrEmbeddingProvider
	defer func() {
		if r := recover(); r != nil {
			res.upserted = 0
			res.stage = stage
			res.err = fmt.Errorf("%w: batch %d panicked: %v", sentinel, num, r)
			log.WithField("panic", r).Error("batch panicked")
		}
	}()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	attempts, err := u.opts.Retry.Do(ctx, func(ctx context.Context) error {
		out, err := u.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", apperror.ErrEmbeddingProvider, len(out), len(texts))
		}
		vectors = out
		return nil
	})
	if err != nil {
		res.stage = StageEmbedding
		res.err = stageError(apperror.ErrEmbeddingProvider, num, attempts, err)
		log.WithField("attempts", attempts).WithError(err).Warn("batch embedding failed")
		return res
	}

	filename := ""
	if req.Document != nil {
		filename = req.Document.Filename
	}
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = NewRecord(c, vectors[i], u.opts.Source, filename, u.opts.PreviewChars)
	}

	stage, sentinel = StageUpsert, apperror.ErrVectorStore
	attempts, err = u.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return u.store.Upsert(ctx, req.Namespace, records)
	})
	if err != nil {
		res.stage = StageUpsert
		res.err = stageError(apperror.ErrVectorStore, num, attempts, err)
		log.WithField("attempts", attempts).WithError(err).Warn("batch upsert failed")
		return res
	}

	res.upserted = len(chunks)
	log.WithField("attempts", attempts).Info("batch upserted")
	return res
}

// stageError makes sure the stage sentinel is in the chain so callers can
// classify the failure even when a collaborator returned a bare error.
func stageError(sentinel error, batch, attempts int, err error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("batch %d after %d attempts: %w", batch, attempts, err)
	}
	return fmt.Errorf("%w: batch %d after %d attempts: %w", sentinel, batch, attempts, err)
}

func splitBatches(chunks []Chunk, size int) [][]Chunk {
	var out [][]Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, chunks[start:end])
	}
	return out
}
