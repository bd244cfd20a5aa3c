package postgres

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gorm.io/gorm"
)

type projectionRepository struct {
	db *gorm.DB
}

func (r *projectionRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.ProjectionPoint, error) {
	var rows []projectionRow
	err := r.db.WithContext(ctx).
		Where("model_update_id = ?", id.String()).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projection points", goerr.V("model_update_id", id))
	}
	points := make([]*model.ProjectionPoint, len(rows))
	for i := range rows {
		points[i] = rows[i].toModel()
	}
	return points, nil
}
