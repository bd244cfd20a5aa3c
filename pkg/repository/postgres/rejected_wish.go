package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gorm.io/gorm"
)

type rejectedWishRepository struct {
	db *gorm.DB
}

func (r *rejectedWishRepository) Create(ctx context.Context, rejected *model.RejectedWish) (*model.RejectedWish, error) {
	created := *rejected
	if created.ID == "" {
		created.ID = model.NewRejectedWishID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	row := &rejectedWishRow{
		ID:              string(created.ID),
		Content:         created.Content,
		RejectionReason: created.RejectionReason,
		ModerationModel: created.ModerationModel,
		CreatedAt:       created.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create rejected wish", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *rejectedWishRepository) List(ctx context.Context, limit int) ([]*model.RejectedWish, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []rejectedWishRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list rejected wishes")
	}
	result := make([]*model.RejectedWish, len(rows))
	for i, row := range rows {
		result[i] = &model.RejectedWish{
			ID:              model.RejectedWishID(row.ID),
			Content:         row.Content,
			RejectionReason: row.RejectionReason,
			ModerationModel: row.ModerationModel,
			CreatedAt:       row.CreatedAt,
		}
	}
	return result, nil
}
