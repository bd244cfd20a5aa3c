package firestore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type wishRepository struct {
	f *Firestore
}

func (r *wishRepository) Create(ctx context.Context, wish *model.Wish) (*model.Wish, error) {
	created := *wish
	if created.ID == "" {
		created.ID = model.NewWishID()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	docRef := r.f.collection(CollectionWishes).Doc(created.ID.String())
	if _, err := docRef.Create(ctx, toWishDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create wish", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *wishRepository) Get(ctx context.Context, id model.WishID) (*model.Wish, error) {
	doc, err := r.f.collection(CollectionWishes).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get wish", goerr.V("id", id))
	}

	var d wishDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal wish", goerr.V("id", id))
	}
	if d.IsDeleted {
		return nil, goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
	}
	return fromWishDoc(&d), nil
}

func (r *wishRepository) Delete(ctx context.Context, id model.WishID) error {
	docRef := r.f.collection(CollectionWishes).Doc(id.String())

	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get wish", goerr.V("id", id))
		}
		deleted, err := doc.DataAt("IsDeleted")
		if err == nil && deleted == true {
			return goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "IsDeleted", Value: true},
			{Path: "UpdatedAt", Value: time.Now().UTC()},
		})
	})
}

func (r *wishRepository) ListActive(ctx context.Context) ([]*model.Wish, error) {
	query := r.f.collection(CollectionWishes).Where("IsDeleted", "==", false)
	return r.query(ctx, query)
}

func (r *wishRepository) ListByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Wish, error) {
	query := r.f.collection(CollectionWishes).
		Where("TopicID", "==", topicID.String()).
		Where("IsDeleted", "==", false)
	return r.query(ctx, query)
}

// query sorts on the client so that equality filters need no composite index
func (r *wishRepository) query(ctx context.Context, query firestore.Query) ([]*model.Wish, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	wishes := make([]*model.Wish, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate wishes")
		}

		var d wishDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal wish", goerr.V("docID", doc.Ref.ID))
		}
		wishes = append(wishes, fromWishDoc(&d))
	}

	slices.SortFunc(wishes, func(a, b *model.Wish) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return wishes, nil
}
