package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/utils/safe"
	"google.golang.org/api/option"
)

const contentTypeJSON = "application/json"

type newWriterFunc func(ctx context.Context, bucket, key, contentType string) io.WriteCloser

// Archiver exports the 2D projection of completed runs to Cloud Storage as
// one JSON object per run.
type Archiver struct {
	bucket    string
	prefix    string
	client    *storage.Client
	newWriter newWriterFunc
}

var _ interfaces.Archiver = &Archiver{}

type Option func(*Archiver)

// WithPrefix sets the object key prefix
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		a.prefix = prefix
	}
}

// New creates an archiver writing to bucket
func New(ctx context.Context, bucket string, opts ...Option) (*Archiver, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	a := &Archiver{bucket: bucket, client: client}
	a.newWriter = func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Close releases the storage client
func (a *Archiver) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

type archivedRun struct {
	ID             string    `json:"id"`
	Version        int64     `json:"version"`
	Status         string    `json:"status"`
	EmbeddingModel string    `json:"embedding_model"`
	WishesCount    int       `json:"wishes_count"`
	TopicsCreated  int       `json:"topics_created"`
	NoiseCount     int       `json:"noise_count"`
	StartedAt      time.Time `json:"started_at"`
}

type archivedPoint struct {
	WishID       string  `json:"wish_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ClusterLabel int     `json:"cluster"`
	TopicID      string  `json:"topic_id,omitempty"`
}

type archivedProjection struct {
	Run    archivedRun     `json:"run"`
	Points []archivedPoint `json:"points"`
}

// ObjectKey returns the key a run's projection is stored under
func (a *Archiver) ObjectKey(run *model.ModelUpdate) string {
	return path.Join(a.prefix, "projections", fmt.Sprintf("v%06d-%s.json", run.Version, run.ID))
}

func (a *Archiver) ArchiveProjection(ctx context.Context, run *model.ModelUpdate, points []*model.ProjectionPoint) error {
	if run == nil {
		return goerr.New("run is required")
	}

	doc := archivedProjection{
		Run: archivedRun{
			ID:             run.ID.String(),
			Version:        run.Version,
			Status:         run.Status.String(),
			EmbeddingModel: run.Configuration.EmbeddingModel,
			WishesCount:    run.WishesCount,
			TopicsCreated:  run.TopicsCreated,
			NoiseCount:     run.NoiseCount,
			StartedAt:      run.StartedAt,
		},
		Points: make([]archivedPoint, 0, len(points)),
	}
	for _, p := range points {
		ap := archivedPoint{
			WishID:       p.WishID.String(),
			X:            p.X,
			Y:            p.Y,
			ClusterLabel: p.ClusterLabel,
		}
		if p.TopicID != nil {
			ap.TopicID = p.TopicID.String()
		}
		doc.Points = append(doc.Points, ap)
	}

	key := a.ObjectKey(run)
	w := a.newWriter(ctx, a.bucket, key, contentTypeJSON)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write projection archive", goerr.V("bucket", a.bucket), goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close projection archive", goerr.V("bucket", a.bucket), goerr.V("key", key))
	}
	return nil
}
