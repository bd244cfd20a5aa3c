package firestore

import (
	"cmp"
	"context"
	"slices"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type topicRepository struct {
	f *Firestore
}

func (r *topicRepository) Get(ctx context.Context, id model.TopicID) (*model.Topic, error) {
	doc, err := r.f.collection(CollectionTopics).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "topic not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get topic", goerr.V("id", id))
	}

	var d topicDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal topic", goerr.V("id", id))
	}
	return fromTopicDoc(&d), nil
}

func (r *topicRepository) GetMany(ctx context.Context, ids []model.TopicID) (map[model.TopicID]*model.Topic, error) {
	result := make(map[model.TopicID]*model.Topic, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	seen := make(map[model.TopicID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, r.f.collection(CollectionTopics).Doc(id.String()))
	}

	docs, err := r.f.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get topics", goerr.V("count", len(refs)))
	}
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var d topicDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal topic", goerr.V("docID", doc.Ref.ID))
		}
		result[model.TopicID(d.ID)] = fromTopicDoc(&d)
	}
	return result, nil
}

func (r *topicRepository) ListActive(ctx context.Context) ([]*model.Topic, error) {
	return r.query(ctx, r.f.collection(CollectionTopics).Where("Active", "==", true))
}

func (r *topicRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.Topic, error) {
	return r.query(ctx, r.f.collection(CollectionTopics).Where("ModelUpdateID", "==", id.String()))
}

func (r *topicRepository) query(ctx context.Context, query firestore.Query) ([]*model.Topic, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	topics := make([]*model.Topic, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate topics")
		}

		var d topicDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal topic", goerr.V("docID", doc.Ref.ID))
		}
		topics = append(topics, fromTopicDoc(&d))
	}

	slices.SortFunc(topics, func(a, b *model.Topic) int {
		if c := cmp.Compare(b.ModelVersion, a.ModelVersion); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ClusterLabel, b.ClusterLabel); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return topics, nil
}
