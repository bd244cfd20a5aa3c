package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/wishwell/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

const (
	EmbeddingBackendHash = "hash"
	EmbeddingBackendHTTP = "http"
	EmbeddingBackendLLM  = "llm"
)

// Embedding selects and configures the embedding backend
type Embedding struct {
	backend     string
	model       string
	endpoint    string
	dimension   int
	batchSize   int
	concurrency int
	timeout     time.Duration
}

func (x *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-backend",
			Usage:       "Embedding backend [hash|http|llm]",
			Category:    "Embedding",
			Value:       EmbeddingBackendHash,
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name (default depends on backend)",
			Category:    "Embedding",
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "embedding-endpoint",
			Usage:       "Embedding server URL for the http backend",
			Category:    "Embedding",
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_ENDPOINT"),
			Destination: &x.endpoint,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Vector dimension for the hash and llm backends",
			Category:    "Embedding",
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_DIMENSION"),
			Destination: &x.dimension,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Usage:       "Texts per embedding request",
			Category:    "Embedding",
			Value:       embedding.DefaultBatchSize,
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_BATCH_SIZE"),
			Destination: &x.batchSize,
		},
		&cli.IntFlag{
			Name:        "embedding-concurrency",
			Usage:       "Parallel embedding requests",
			Category:    "Embedding",
			Value:       embedding.DefaultConcurrency,
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_CONCURRENCY"),
			Destination: &x.concurrency,
		},
		&cli.DurationFlag{
			Name:        "embedding-timeout",
			Usage:       "Timeout of one embedding request for the http backend",
			Category:    "Embedding",
			Value:       embedding.DefaultHTTPTimeout,
			Sources:     cli.EnvVars("WISHWELL_EMBEDDING_TIMEOUT"),
			Destination: &x.timeout,
		},
	}
}

func (x Embedding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("model", x.modelName()),
		slog.String("endpoint", x.endpoint),
		slog.Int("batch_size", x.batchSize),
		slog.Int("concurrency", x.concurrency),
	)
}

func (x *Embedding) modelName() string {
	if x.model != "" {
		return x.model
	}
	switch x.backend {
	case EmbeddingBackendHTTP:
		return "all-MiniLM-L6-v2"
	case EmbeddingBackendLLM:
		return "text-embedding-004"
	default:
		return "feature-hash"
	}
}

// Configure returns an unloaded embedding model. The llm backend requires
// llmClient.
func (x *Embedding) Configure(llmClient gollem.LLMClient) (*embedding.Model, error) {
	var loader embedding.Loader
	switch x.backend {
	case "", EmbeddingBackendHash:
		loader = embedding.NewHashLoader(x.dimension)

	case EmbeddingBackendHTTP:
		if x.endpoint == "" {
			return nil, goerr.Wrap(ErrMissingOption, "embedding-endpoint is required for http backend")
		}
		loader = embedding.NewHTTPLoader(embedding.HTTPConfig{
			Endpoint: x.endpoint,
			Model:    x.modelName(),
			Timeout:  x.timeout,
		})

	case EmbeddingBackendLLM:
		if llmClient == nil {
			return nil, goerr.Wrap(ErrMissingOption, "gemini-project is required for llm embedding backend")
		}
		loader = embedding.NewLLMLoader(llmClient, x.dimension)

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid embedding backend", goerr.V("backend", x.backend))
	}

	return embedding.New(x.modelName(), loader,
		embedding.WithBatchSize(x.batchSize),
		embedding.WithConcurrency(x.concurrency),
	), nil
}
