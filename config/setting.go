package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfiguration marks missing or invalid settings. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

type serverConfig struct {
	Port        int    `koanf:"port" validate:"required"`
	AppName     string `koanf:"app_name" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"required,gt=0"`
	BodyLimit   int    `koanf:"body_limit" validate:"required,gt=0"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleMilvus    Module = "milvus"
	ModuleChromem   Module = "chromem"
	ModuleIngest    Module = "ingest"
	ModuleLoader    Module = "loader"
	ModuleUpserter  Module = "upserter"
	ModuleOpenAI    Module = "openai"
	ModuleS3        Module = "s3"
	ModuleServer    Module = "server"
	ModuleSetting   Module = "setting"
	ModuleUpload    Module = "upload"
	ModuleHealth    Module = "healthcheck"
	ModuleEmbedding Module = "embedding"
	ModuleWatch     Module = "watch"
)

const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"

	BackendMilvus  = "milvus"
	BackendChromem = "chromem"

	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
)

type embeddingConfig struct {
	Provider  string `koanf:"provider" validate:"required,oneof=openai compatible"`
	Key       string `koanf:"key" validate:"required_if=Provider openai"`
	Model     string `koanf:"model" validate:"required"`
	BaseURL   string `koanf:"base_url" validate:"required_if=Provider compatible"`
	Dimension int    `koanf:"dimension" validate:"required,gt=0"`
}

type vectorStoreConfig struct {
	Backend         string          `koanf:"backend" validate:"required,oneof=milvus chromem"`
	Address         string          `koanf:"address" validate:"required_if=Backend milvus"`
	Collection      string          `koanf:"collection" validate:"required"`
	Path            string          `koanf:"path"`
	IndexHNSWConfig indexHNSWConfig `koanf:"index_hnsw_config"`
}

type indexHNSWConfig struct {
	MetricType     string `koanf:"metric_type" validate:"required"`
	M              int    `koanf:"m" validate:"required,gt=0"`
	EfConstruction int    `koanf:"ef_construction" validate:"required,gt=0"`
}

type s3Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
}

type ingestConfig struct {
	ChunkSize    int           `koanf:"chunk_size" validate:"required,gt=0"`
	ChunkOverlap int           `koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Strategy     string        `koanf:"strategy" validate:"required,oneof=fixed recursive"`
	BatchSize    int           `koanf:"batch_size" validate:"required,gt=0"`
	Concurrency  int           `koanf:"concurrency" validate:"required,gt=0"`
	MaxAttempts  int           `koanf:"max_attempts" validate:"required,gt=0"`
	BaseDelay    time.Duration `koanf:"base_delay" validate:"gte=0"`
	CallTimeout  time.Duration `koanf:"call_timeout" validate:"required,gt=0"`
	// EmbedRPS caps embedding requests per second across batches; 0 disables.
	EmbedRPS     float64       `koanf:"embed_rps" validate:"gte=0"`
	EmbedBurst   int           `koanf:"embed_burst" validate:"gte=0"`
	PreviewChars int           `koanf:"preview_chars" validate:"required,gt=0"`
	Namespace    string        `koanf:"namespace" validate:"required"`
	Source       string        `koanf:"source" validate:"required"`
	StorageDir   string        `koanf:"storage_dir" validate:"required"`
}

type config struct {
	Server      serverConfig      `koanf:"server"`
	LogLevel    logLevel          `koanf:"log_level" validate:"oneof=debug info warn error fatal panic"`
	Embedding   embeddingConfig   `koanf:"embedding"`
	VectorStore vectorStoreConfig `koanf:"vector_store"`
	S3          s3Config          `koanf:"s3"`
	Ingest      ingestConfig      `koanf:"ingest"`
}

var defaultConfig = config{
	Server: serverConfig{
		Port:        8000,
		AppName:     "portfolio-rag",
		Concurrency: 64,
		BodyLimit:   20 * 1024 * 1024,
	},
	LogLevel: Info,
	Embedding: embeddingConfig{
		Provider:  ProviderOpenAI,
		Model:     "text-embedding-3-small",
		Dimension: 1536,
	},
	VectorStore: vectorStoreConfig{
		Backend:    BackendMilvus,
		Address:    "localhost:19530",
		Collection: "resume_chunks",
		Path:       "storage/chromem",
		IndexHNSWConfig: indexHNSWConfig{
			MetricType:     "COSINE",
			M:              16,
			EfConstruction: 200,
		},
	},
	S3: s3Config{
		Region: "us-east-1",
	},
	Ingest: ingestConfig{
		ChunkSize:    600,
		ChunkOverlap: 100,
		Strategy:     StrategyFixed,
		BatchSize:    100,
		Concurrency:  2,
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		CallTimeout:  30 * time.Second,
		EmbedBurst:   1,
		PreviewChars: 100,
		Namespace:    "resume-v1",
		Source:       "resume",
		StorageDir:   "storage/documents",
	},
}

var (
	Cfg = defaultConfig
	mu  sync.Mutex
)

// Init loads path (optional), APP_* environment overrides and validates the
// result into Cfg. Cfg is left untouched when an error is returned.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	mu.Lock()
	Cfg = cfg
	mu.Unlock()
	return nil
}

// Load builds a validated config without touching Cfg.
func Load(path string) (config, error) {
	k := koanf.New(".")
	cfg := defaultConfig

	// file
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("%w: %s: %v", ErrConfiguration, path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s: %v", ErrConfiguration, path, err)
		}
	}

	// env APP_INGEST__CHUNK_SIZE -> ingest.chunk_size
	if err := k.Load(env.Provider("APP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "APP_")), "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("%w: env: %v", ErrConfiguration, err)
	}

	// bind
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("%w: unmarshal: %v", ErrConfiguration, err)
	}

	if cfg.Embedding.Key == "" {
		cfg.Embedding.Key = os.Getenv("OPENAI_API_KEY")
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%v validation failed:", ModuleSetting))
	for _, e := range errs {
		sb.WriteString(fmt.Sprintf("\n  - %s: failed '%s' (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, sb.String())
}
