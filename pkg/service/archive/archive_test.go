package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/service/archive"
)

type bufferWriter struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func testRun() *model.ModelUpdate {
	return &model.ModelUpdate{
		ID:            model.ModelUpdateID("run-1"),
		Version:       3,
		Status:        types.RunStatusCompleted,
		WishesCount:   2,
		TopicsCreated: 1,
		NoiseCount:    1,
		StartedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Configuration: model.TrainingConfig{EmbeddingModel: "hash"},
	}
}

func TestArchiveProjection(t *testing.T) {
	var gotBucket, gotKey, gotType string
	w := &bufferWriter{}
	a := archive.NewWithWriterForTest("wish-archive", func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		gotBucket, gotKey, gotType = bucket, key, contentType
		return w
	}, archive.WithPrefix("prod"))

	topicID := model.TopicID("topic-1")
	points := []*model.ProjectionPoint{
		{WishID: "w1", X: 1.5, Y: -2, ClusterLabel: 0, TopicID: &topicID},
		{WishID: "w2", X: 0, Y: 3, ClusterLabel: model.NoiseLabel},
	}

	gt.NoError(t, a.ArchiveProjection(context.Background(), testRun(), points)).Required()

	gt.Value(t, gotBucket).Equal("wish-archive")
	gt.Value(t, gotKey).Equal("prod/projections/v000003-run-1.json")
	gt.Value(t, gotType).Equal("application/json")
	gt.B(t, w.closed).True()

	var doc struct {
		Run struct {
			Version        int64  `json:"version"`
			EmbeddingModel string `json:"embedding_model"`
		} `json:"run"`
		Points []struct {
			WishID  string  `json:"wish_id"`
			X       float64 `json:"x"`
			Cluster int     `json:"cluster"`
			TopicID string  `json:"topic_id"`
		} `json:"points"`
	}
	gt.NoError(t, json.Unmarshal(w.Bytes(), &doc)).Required()
	gt.Number(t, doc.Run.Version).Equal(int64(3))
	gt.Value(t, doc.Run.EmbeddingModel).Equal("hash")
	gt.A(t, doc.Points).Length(2).Required()
	gt.Value(t, doc.Points[0].TopicID).Equal("topic-1")
	gt.Number(t, doc.Points[0].X).Equal(1.5)
	gt.Number(t, doc.Points[1].Cluster).Equal(-1)
	gt.Value(t, doc.Points[1].TopicID).Equal("")
}

func TestArchiveProjection_CloseError(t *testing.T) {
	w := &bufferWriter{closeErr: errors.New("upload failed")}
	a := archive.NewWithWriterForTest("b", func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		return w
	})

	err := a.ArchiveProjection(context.Background(), testRun(), nil)
	gt.Error(t, err)
}

func TestArchiveProjection_NilRun(t *testing.T) {
	a := archive.NewWithWriterForTest("b", func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		return &bufferWriter{}
	})
	gt.Error(t, a.ArchiveProjection(context.Background(), nil, nil))
}

func TestArchiveProjection_WithCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set")
	}

	ctx := context.Background()
	a, err := archive.New(ctx, bucket, archive.WithPrefix("test"))
	gt.NoError(t, err).Required()
	defer func() { gt.NoError(t, a.Close()) }()

	gt.NoError(t, a.ArchiveProjection(ctx, testRun(), nil))
}
