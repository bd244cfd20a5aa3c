package reduction

import (
	"context"

	"github.com/danaugrs/go-tsne/tsne"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultPerplexity   = 30.0
	defaultLearningRate = 200.0
	defaultIterations   = 500
	minPerplexity       = 2.0
)

// Projector produces the 2D point cloud of a run with t-SNE. When a seed is
// configured, or there are too few points for a meaningful perplexity, it
// uses the first two principal components so that the output is reproducible.
type Projector struct {
	perplexity   float64
	learningRate float64
	iterations   int
	seeded       bool
}

var _ interfaces.Projector = &Projector{}

type ProjectorOption func(*Projector)

// WithSeed switches to the deterministic principal component layout when
// seed is non-nil. Only the presence of a seed matters: go-tsne draws from
// the global math/rand source, so the value itself cannot be applied and is
// kept only in the run's configuration snapshot.
func WithSeed(seed *int64) ProjectorOption {
	return func(p *Projector) {
		p.seeded = seed != nil
	}
}

func WithIterations(n int) ProjectorOption {
	return func(p *Projector) {
		if n > 0 {
			p.iterations = n
		}
	}
}

func WithPerplexity(v float64) ProjectorOption {
	return func(p *Projector) {
		if v > 0 {
			p.perplexity = v
		}
	}
}

func NewProjector(opts ...ProjectorOption) *Projector {
	p := &Projector{
		perplexity:   defaultPerplexity,
		learningRate: defaultLearningRate,
		iterations:   defaultIterations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Projector) Project2D(ctx context.Context, vectors [][]float32) ([]model.Point2D, error) {
	switch len(vectors) {
	case 0:
		return nil, nil
	case 1:
		return []model.Point2D{{}}, nil
	}

	perplexity := min(p.perplexity, float64(len(vectors)-1)/3)
	if p.seeded || perplexity < minPerplexity {
		return p.principal(ctx, vectors)
	}

	x, err := centeredMatrix(vectors)
	if err != nil {
		return nil, err
	}

	cancelled := false
	t := tsne.NewTSNE(2, perplexity, p.learningRate, p.iterations, false)
	t.EmbedData(x, func(iter int, divergence float64, embedding mat.Matrix) bool {
		if ctx.Err() != nil {
			cancelled = true
			return true
		}
		return false
	})
	if cancelled {
		return nil, goerr.Wrap(ctx.Err(), "projection cancelled")
	}

	points := make([]model.Point2D, len(vectors))
	for i := range points {
		points[i] = model.Point2D{X: t.Y.At(i, 0), Y: t.Y.At(i, 1)}
	}
	return points, nil
}

func (p *Projector) principal(ctx context.Context, vectors [][]float32) ([]model.Point2D, error) {
	scores, err := project(ctx, vectors, 2)
	if err != nil {
		return nil, err
	}

	points := make([]model.Point2D, len(scores))
	for i, s := range scores {
		points[i].X = s[0]
		if len(s) > 1 {
			points[i].Y = s[1]
		}
	}
	return points, nil
}
