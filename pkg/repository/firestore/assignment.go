package firestore

import (
	"cmp"
	"context"
	"slices"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"google.golang.org/api/iterator"
)

type assignmentRepository struct {
	f *Firestore
}

func (r *assignmentRepository) GetPrimary(ctx context.Context, wishID model.WishID) (*model.Assignment, error) {
	assignments, err := r.query(ctx, r.f.collection(CollectionAssignments).
		Where("WishID", "==", wishID.String()).
		Where("IsPrimary", "==", true))
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "primary assignment not found", goerr.V("wish_id", wishID))
	}
	return assignments[0], nil
}

func (r *assignmentRepository) ListByWish(ctx context.Context, wishID model.WishID) ([]*model.Assignment, error) {
	return r.query(ctx, r.f.collection(CollectionAssignments).Where("WishID", "==", wishID.String()))
}

func (r *assignmentRepository) ListPrimaryByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Assignment, error) {
	return r.query(ctx, r.f.collection(CollectionAssignments).
		Where("TopicID", "==", topicID.String()).
		Where("IsPrimary", "==", true))
}

func (r *assignmentRepository) query(ctx context.Context, query firestore.Query) ([]*model.Assignment, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	result := make([]*model.Assignment, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate assignments")
		}

		var d assignmentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal assignment", goerr.V("docID", doc.Ref.ID))
		}
		result = append(result, fromAssignmentDoc(&d))
	}

	slices.SortFunc(result, func(a, b *model.Assignment) int {
		if c := b.AssignedAt.Compare(a.AssignedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.WishID, b.WishID); c != 0 {
			return c
		}
		return cmp.Compare(a.TopicID, b.TopicID)
	})
	return result, nil
}
