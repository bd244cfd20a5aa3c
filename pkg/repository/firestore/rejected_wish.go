package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"google.golang.org/api/iterator"
)

type rejectedWishRepository struct {
	f *Firestore
}

func (r *rejectedWishRepository) Create(ctx context.Context, rejected *model.RejectedWish) (*model.RejectedWish, error) {
	created := *rejected
	if created.ID == "" {
		created.ID = model.NewRejectedWishID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	doc := &rejectedWishDoc{
		ID:              string(created.ID),
		Content:         created.Content,
		RejectionReason: created.RejectionReason,
		ModerationModel: created.ModerationModel,
		CreatedAt:       created.CreatedAt,
	}
	if _, err := r.f.collection(CollectionRejectedWishes).Doc(doc.ID).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create rejected wish", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *rejectedWishRepository) List(ctx context.Context, limit int) ([]*model.RejectedWish, error) {
	query := r.f.collection(CollectionRejectedWishes).OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	result := make([]*model.RejectedWish, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate rejected wishes")
		}
		var d rejectedWishDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal rejected wish", goerr.V("docID", doc.Ref.ID))
		}
		result = append(result, &model.RejectedWish{
			ID:              model.RejectedWishID(d.ID),
			Content:         d.Content,
			RejectionReason: d.RejectionReason,
			ModerationModel: d.ModerationModel,
			CreatedAt:       d.CreatedAt,
		})
	}
	return result, nil
}
