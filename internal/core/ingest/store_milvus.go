package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusIDMaxLen       = 64
	milvusShortMaxLen    = 512
	milvusTextMaxLen     = 65535
	milvusPreviewMaxLen  = 2048
	milvusVectorField    = "embedding"
	milvusShardNum       = 2
	milvusPartitionStart = "ns_"
	milvusPartitionHash  = 4 // bytes of sha256 in a partition name
)

type MilvusOptions struct {
	Address        string
	Collection     string
	Dimension      int
	MetricType     string
	M              int
	EfConstruction int
	// ConnectAttempts and ConnectDelay bound the initial dial; Milvus may
	// take tens of seconds to boot.
	ConnectAttempts int
	ConnectDelay    time.Duration
	ConnectTimeout  time.Duration
}

// MilvusStore keeps one collection and maps each namespace to a partition.
type MilvusStore struct {
	cli  milvusclient.Client
	opts MilvusOptions

	mu         sync.Mutex
	ready      bool
	partitions map[string]bool
}

func NewMilvusStore(ctx context.Context, opts MilvusOptions) (*MilvusStore, error) {
	if opts.Address == "" || opts.Collection == "" || opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: milvus address, collection and dimension are required", apperror.ErrConfiguration)
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	cli, err := connectMilvusWithRetry(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", apperror.ErrVectorStore, opts.Address, err)
	}
	return &MilvusStore{cli: cli, opts: opts, partitions: map[string]bool{}}, nil
}

func connectMilvusWithRetry(ctx context.Context, opts MilvusOptions) (milvusclient.Client, error) {
	var lastErr error
	for i := 0; i < opts.ConnectAttempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		cli, err := milvusclient.NewClient(attemptCtx, milvusclient.Config{Address: opts.Address})
		cancel()
		if err == nil {
			return cli, nil
		}
		lastErr = err
		logger.For(config.ModuleMilvus).WithFields(map[string]interface{}{
			"address": opts.Address,
			"attempt": i + 1,
			"error":   err.Error(),
		}).Warn("milvus connect failed")
		if i+1 < opts.ConnectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.ConnectDelay):
			}
		}
	}
	return nil, lastErr
}

// PartitionName maps a namespace onto Milvus' partition naming rules
// ([A-Za-z_][A-Za-z0-9_]*). Disallowed runes become '_' and a short hash of
// the raw namespace is appended, so "resume-v1" and "resume_v1" stay apart.
func PartitionName(namespace string) string {
	var b strings.Builder
	b.WriteString(milvusPartitionStart)
	for _, r := range namespace {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(namespace))
	b.WriteByte('_')
	b.WriteString(hex.EncodeToString(sum[:milvusPartitionHash]))
	return b.String()
}

func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	partition, err := s.ensure(ctx, namespace)
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}

	n := len(records)
	ids := make([]string, n)
	sources := make([]string, n)
	filenames := make([]string, n)
	chunkIdxs := make([]int64, n)
	pages := make([]int64, n)
	texts := make([]string, n)
	previews := make([]string, n)
	vectors := make([][]float32, n)
	for i, r := range records {
		if len(r.Vector) != s.opts.Dimension {
			return fmt.Errorf("%w: record %s has dimension %d, collection expects %d",
				apperror.ErrVectorStore, r.ID, len(r.Vector), s.opts.Dimension)
		}
		ids[i] = r.ID
		sources[i] = truncateBytes(r.Metadata.Source, milvusShortMaxLen)
		filenames[i] = truncateBytes(r.Metadata.Filename, milvusShortMaxLen)
		chunkIdxs[i] = int64(r.Metadata.ChunkIndex)
		pages[i] = int64(r.Metadata.Page)
		texts[i] = truncateBytes(r.Metadata.Text, milvusTextMaxLen)
		previews[i] = truncateBytes(r.Metadata.Preview, milvusPreviewMaxLen)
		vectors[i] = r.Vector
	}

	_, err = s.cli.Upsert(ctx, s.opts.Collection, partition,
		milvusentity.NewColumnVarChar("id", ids),
		milvusentity.NewColumnVarChar("source", sources),
		milvusentity.NewColumnVarChar("filename", filenames),
		milvusentity.NewColumnInt64("chunk_index", chunkIdxs),
		milvusentity.NewColumnInt64("page", pages),
		milvusentity.NewColumnVarChar("text", texts),
		milvusentity.NewColumnVarChar("preview", previews),
		milvusentity.NewColumnFloatVector(milvusVectorField, s.opts.Dimension, vectors),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %d records into %s/%s: %v", apperror.ErrVectorStore, n, s.opts.Collection, partition, err)
	}
	return nil
}

// ensure creates the collection, its index and the namespace partition on
// first use. Failures are not cached so a retry re-checks.
func (s *MilvusStore) ensure(ctx context.Context, namespace string) (string, error) {
	partition := PartitionName(namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		exists, err := s.cli.HasCollection(ctx, s.opts.Collection)
		if err != nil {
			return "", err
		}
		if !exists {
			if err := s.createCollection(ctx); err != nil {
				return "", err
			}
		}
		s.ready = true
	}

	if !s.partitions[partition] {
		exists, err := s.cli.HasPartition(ctx, s.opts.Collection, partition)
		if err != nil {
			return "", err
		}
		if !exists {
			if err := s.cli.CreatePartition(ctx, s.opts.Collection, partition); err != nil {
				return "", err
			}
		}
		s.partitions[partition] = true
	}
	return partition, nil
}

func (s *MilvusStore) createCollection(ctx context.Context) error {
	schema := milvusentity.NewSchema().WithName(s.opts.Collection).WithDescription("resume chunks")
	schema.WithField(milvusentity.NewField().WithName("id").WithDataType(milvusentity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(milvusIDMaxLen))
	schema.WithField(milvusentity.NewField().WithName("source").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusShortMaxLen))
	schema.WithField(milvusentity.NewField().WithName("filename").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusShortMaxLen))
	schema.WithField(milvusentity.NewField().WithName("chunk_index").WithDataType(milvusentity.FieldTypeInt64))
	schema.WithField(milvusentity.NewField().WithName("page").WithDataType(milvusentity.FieldTypeInt64))
	schema.WithField(milvusentity.NewField().WithName("text").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusTextMaxLen))
	schema.WithField(milvusentity.NewField().WithName("preview").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(milvusPreviewMaxLen))
	schema.WithField(milvusentity.NewField().WithName(milvusVectorField).WithDataType(milvusentity.FieldTypeFloatVector).WithDim(int64(s.opts.Dimension)))

	if err := s.cli.CreateCollection(ctx, schema, milvusShardNum); err != nil {
		return err
	}

	idx, err := milvusentity.NewIndexHNSW(milvusentity.MetricType(s.opts.MetricType), s.opts.M, s.opts.EfConstruction)
	if err != nil {
		return err
	}
	if err := s.cli.CreateIndex(ctx, s.opts.Collection, milvusVectorField, idx, false); err != nil {
		return err
	}
	logger.For(config.ModuleMilvus).WithFields(map[string]interface{}{
		"collection": s.opts.Collection,
		"dimension":  s.opts.Dimension,
		"metric":     s.opts.MetricType,
	}).Info("collection created")
	return nil
}

func (s *MilvusStore) Ping(ctx context.Context) error {
	if _, err := s.cli.HasCollection(ctx, s.opts.Collection); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrVectorStore, err)
	}
	return nil
}

func (s *MilvusStore) Close() error {
	return s.cli.Close()
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var _ VectorStore = (*MilvusStore)(nil)
