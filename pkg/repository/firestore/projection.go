package firestore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"google.golang.org/api/iterator"
)

// projectionChunkSize keeps each chunk document far below the 1 MiB limit
const projectionChunkSize = 1000

type projectionRepository struct {
	f *Firestore
}

func projectionChunkID(id model.ModelUpdateID, chunk int) string {
	return fmt.Sprintf("%s_%05d", id, chunk)
}

func toProjectionChunks(id model.ModelUpdateID, points []*model.ProjectionPoint) []*projectionChunkDoc {
	var chunks []*projectionChunkDoc
	for start := 0; start < len(points); start += projectionChunkSize {
		end := min(start+projectionChunkSize, len(points))
		chunk := &projectionChunkDoc{
			ModelUpdateID: id.String(),
			Chunk:         len(chunks),
			Points:        make([]projectionPointDoc, 0, end-start),
		}
		for _, p := range points[start:end] {
			d := projectionPointDoc{
				WishID:       p.WishID.String(),
				X:            p.X,
				Y:            p.Y,
				ClusterLabel: p.ClusterLabel,
			}
			if p.TopicID != nil {
				d.TopicID = p.TopicID.String()
			}
			chunk.Points = append(chunk.Points, d)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (r *projectionRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.ProjectionPoint, error) {
	iter := r.f.collection(CollectionProjections).Where("ModelUpdateID", "==", id.String()).Documents(ctx)
	defer iter.Stop()

	var chunks []*projectionChunkDoc
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate projection chunks", goerr.V("model_update_id", id))
		}
		var d projectionChunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal projection chunk", goerr.V("docID", doc.Ref.ID))
		}
		chunks = append(chunks, &d)
	}
	slices.SortFunc(chunks, func(a, b *projectionChunkDoc) int {
		return cmp.Compare(a.Chunk, b.Chunk)
	})

	points := make([]*model.ProjectionPoint, 0)
	for _, chunk := range chunks {
		for _, p := range chunk.Points {
			point := &model.ProjectionPoint{
				ModelUpdateID: id,
				WishID:        model.WishID(p.WishID),
				X:             p.X,
				Y:             p.Y,
				ClusterLabel:  p.ClusterLabel,
			}
			if p.TopicID != "" {
				point.TopicID = model.TopicID(p.TopicID).Ptr()
			}
			points = append(points, point)
		}
	}
	return points, nil
}
