package interfaces

import (
	"context"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

// Normalizer turns raw text into normalized tokens
type Normalizer interface {
	Normalize(text string) (*model.NormalizedText, error)
}

// Embedder converts texts into fixed-dimension vectors in input order
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reducer projects embeddings into a lower dimensional space for clustering
type Reducer interface {
	Reduce(ctx context.Context, vectors [][]float32) ([][]float64, error)
}

// Projector produces the 2D point cloud for visualization
type Projector interface {
	Project2D(ctx context.Context, vectors [][]float32) ([]model.Point2D, error)
}

// Clusterer groups points by density and marks outliers as noise
type Clusterer interface {
	Cluster(ctx context.Context, points [][]float64) (*model.ClusterResult, error)
}

// Labeler names a topic from its representative terms and sample texts
type Labeler interface {
	Label(ctx context.Context, terms []string, samples []string) (*model.TopicLabel, error)
}

// Moderator decides whether a submission may enter the store
type Moderator interface {
	Check(ctx context.Context, text string) (*model.ModerationResult, error)
}

// Notifier reports finished training runs
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.ModelUpdate) error
}

// Archiver exports the projection of a completed run
type Archiver interface {
	ArchiveProjection(ctx context.Context, run *model.ModelUpdate, points []*model.ProjectionPoint) error
}
