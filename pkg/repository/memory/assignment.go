package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type assignmentRepository struct {
	m *Memory
}

func (r *assignmentRepository) GetPrimary(ctx context.Context, wishID model.WishID) (*model.Assignment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	if a := r.m.primaryOf(wishID); a != nil {
		return copyAssignment(a), nil
	}
	return nil, goerr.Wrap(model.ErrNotFound, "primary assignment not found", goerr.V("wish_id", wishID))
}

func (r *assignmentRepository) ListByWish(ctx context.Context, wishID model.WishID) ([]*model.Assignment, error) {
	return r.list(func(a *model.Assignment) bool { return a.WishID == wishID }), nil
}

func (r *assignmentRepository) ListPrimaryByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Assignment, error) {
	return r.list(func(a *model.Assignment) bool { return a.IsPrimary && a.TopicID == topicID }), nil
}

func (r *assignmentRepository) list(match func(*model.Assignment) bool) []*model.Assignment {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	result := make([]*model.Assignment, 0)
	for _, a := range r.m.assignments {
		if match(a) {
			result = append(result, copyAssignment(a))
		}
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
	return result
}

// primaryOf must be called with the lock held
func (m *Memory) primaryOf(wishID model.WishID) *model.Assignment {
	wish, exists := m.wishes[wishID]
	if !exists || !wish.HasTopic() {
		return nil
	}
	a, exists := m.assignments[assignmentKey{wishID: wishID, topicID: *wish.TopicID}]
	if !exists || !a.IsPrimary {
		return nil
	}
	return a
}
