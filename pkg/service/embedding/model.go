package embedding

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
)

// ErrModelUnavailable is returned when Embed is called before Load succeeded
// or after Close.
var ErrModelUnavailable = goerr.New("embedding model is not loaded")

// Backend computes embeddings of one batch. A backend that also implements
// io.Closer is closed by Model.Close.
type Backend interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Loader creates the backend. It is called once by Model.Load.
type Loader func(ctx context.Context) (Backend, error)

// Model is the owned embedding resource of the pipeline. It is loaded once at
// startup and released at shutdown; Embed splits input into batches that run
// in parallel while keeping input order.
type Model struct {
	loader      Loader
	batchSize   int
	concurrency int

	mu      sync.RWMutex
	backend Backend
	name    string
}

var _ interfaces.Embedder = &Model{}

type Option func(*Model)

func WithBatchSize(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New creates an unloaded Model
func New(name string, loader Loader, opts ...Option) *Model {
	m := &Model{
		loader:      loader,
		name:        name,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load initializes the backend. Calling Load on a loaded model is a no-op.
func (m *Model) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return nil
	}
	if m.loader == nil {
		return goerr.Wrap(model.ErrEmbedding, "embedding loader is not configured", goerr.V("model", m.name))
	}

	backend, err := m.loader(ctx)
	if err != nil {
		return goerr.Wrap(fmt.Errorf("%w: %w", model.ErrEmbedding, err), "failed to load embedding model",
			goerr.V("model", m.name))
	}
	m.backend = backend

	logging.From(ctx).Info("Embedding model loaded",
		"model", m.name,
		"backend", backend.Name(),
		"batch_size", m.batchSize,
		"concurrency", m.concurrency)
	return nil
}

// Close releases the backend
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backend := m.backend
	m.backend = nil
	if closer, ok := backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return goerr.Wrap(err, "failed to close embedding backend", goerr.V("model", m.name))
		}
	}
	return nil
}

// Name returns the configured model name
func (m *Model) Name() string {
	return m.name
}

// Embed returns one vector per text in input order. Any batch failure fails
// the whole call with model.ErrEmbedding; partial results are discarded.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.RLock()
	backend := m.backend
	m.mu.RUnlock()

	if backend == nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", model.ErrEmbedding, ErrModelUnavailable), "embedding model unavailable", goerr.V("model", m.name))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.concurrency)

	for start := 0; start < len(texts); start += m.batchSize {
		end := min(start+m.batchSize, len(texts))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, err := backend.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return goerr.Wrap(err, "failed to embed batch", goerr.V("start", start), goerr.V("end", end))
			}
			if len(batch) != end-start {
				return goerr.New("embedding count mismatch",
					goerr.V("requested", end-start),
					goerr.V("returned", len(batch)))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", model.ErrEmbedding, err), "embedding generation failed",
			goerr.V("model", m.name),
			goerr.V("count", len(texts)))
	}

	if err := validateVectors(vectors); err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", model.ErrEmbedding, err), "invalid embedding output", goerr.V("model", m.name))
	}

	return vectors, nil
}

func validateVectors(vectors [][]float32) error {
	dim := len(vectors[0])
	if dim == 0 {
		return goerr.New("embedding has no dimension")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return goerr.New("embedding dimension mismatch",
				goerr.V("index", i),
				goerr.V("expected", dim),
				goerr.V("actual", len(v)))
		}
		for j, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return goerr.New("embedding has non-finite value", goerr.V("index", i), goerr.V("position", j))
			}
		}
	}
	return nil
}
