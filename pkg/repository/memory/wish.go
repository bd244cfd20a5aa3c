package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type wishRepository struct {
	m *Memory
}

func (r *wishRepository) Create(ctx context.Context, wish *model.Wish) (*model.Wish, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	created := copyWish(wish)
	if created.ID == "" {
		created.ID = model.NewWishID()
	}
	if _, exists := r.m.wishes[created.ID]; exists {
		return nil, goerr.New("wish already exists", goerr.V("id", created.ID))
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	r.m.wishes[created.ID] = created
	return copyWish(created), nil
}

func (r *wishRepository) Get(ctx context.Context, id model.WishID) (*model.Wish, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	wish, exists := r.m.wishes[id]
	if !exists || wish.IsDeleted {
		return nil, goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
	}
	return copyWish(wish), nil
}

func (r *wishRepository) Delete(ctx context.Context, id model.WishID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	wish, exists := r.m.wishes[id]
	if !exists || wish.IsDeleted {
		return goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
	}
	wish.IsDeleted = true
	wish.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *wishRepository) ListActive(ctx context.Context) ([]*model.Wish, error) {
	return r.list(func(w *model.Wish) bool { return true }), nil
}

func (r *wishRepository) ListByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Wish, error) {
	return r.list(func(w *model.Wish) bool {
		return w.TopicID != nil && *w.TopicID == topicID
	}), nil
}

func (r *wishRepository) list(match func(*model.Wish) bool) []*model.Wish {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	wishes := make([]*model.Wish, 0)
	for _, w := range r.m.wishes {
		if !w.IsDeleted && match(w) {
			wishes = append(wishes, copyWish(w))
		}
	}
	sortWishes(wishes)
	return wishes
}

func sortWishes(wishes []*model.Wish) {
	slices.SortFunc(wishes, func(a, b *model.Wish) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
