package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gorm.io/gorm"
)

type wishRepository struct {
	db *gorm.DB
}

func (r *wishRepository) Create(ctx context.Context, wish *model.Wish) (*model.Wish, error) {
	row := toWishRow(wish)
	if row.ID == "" {
		row.ID = model.NewWishID().String()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create wish", goerr.V("id", row.ID))
	}
	return row.toModel(), nil
}

func (r *wishRepository) Get(ctx context.Context, id model.WishID) (*model.Wish, error) {
	var row wishRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id.String(), false).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get wish", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *wishRepository) Delete(ctx context.Context, id model.WishID) error {
	result := r.db.WithContext(ctx).Model(&wishRow{}).
		Where("id = ? AND is_deleted = ?", id.String(), false).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete wish", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(model.ErrNotFound, "wish not found", goerr.V("id", id))
	}
	return nil
}

func (r *wishRepository) ListActive(ctx context.Context) ([]*model.Wish, error) {
	return r.list(r.db.WithContext(ctx).Where("is_deleted = ?", false))
}

func (r *wishRepository) ListByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Wish, error) {
	return r.list(r.db.WithContext(ctx).
		Where("is_deleted = ? AND topic_id = ?", false, topicID.String()))
}

func (r *wishRepository) list(query *gorm.DB) ([]*model.Wish, error) {
	var rows []wishRow
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list wishes")
	}
	wishes := make([]*model.Wish, len(rows))
	for i := range rows {
		wishes[i] = rows[i].toModel()
	}
	return wishes, nil
}
