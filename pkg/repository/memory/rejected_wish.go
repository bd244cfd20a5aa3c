package memory

import (
	"context"
	"time"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type rejectedWishRepository struct {
	m *Memory
}

func (r *rejectedWishRepository) Create(ctx context.Context, rejected *model.RejectedWish) (*model.RejectedWish, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	created := copyRejectedWish(rejected)
	if created.ID == "" {
		created.ID = model.NewRejectedWishID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	r.m.rejected = append(r.m.rejected, created)
	return copyRejectedWish(created), nil
}

// List returns the most recent rejections first
func (r *rejectedWishRepository) List(ctx context.Context, limit int) ([]*model.RejectedWish, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	result := make([]*model.RejectedWish, 0, len(r.m.rejected))
	for i := len(r.m.rejected) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, copyRejectedWish(r.m.rejected[i]))
	}
	return result, nil
}
