package postgres

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gorm.io/gorm"
)

const assignmentOrder = "assigned_at DESC, wish_id ASC, topic_id ASC"

type assignmentRepository struct {
	db *gorm.DB
}

func (r *assignmentRepository) GetPrimary(ctx context.Context, wishID model.WishID) (*model.Assignment, error) {
	var row assignmentRow
	err := r.db.WithContext(ctx).
		Where("wish_id = ? AND is_primary = ?", wishID.String(), true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "primary assignment not found", goerr.V("wish_id", wishID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get primary assignment", goerr.V("wish_id", wishID))
	}
	return row.toModel(), nil
}

func (r *assignmentRepository) ListByWish(ctx context.Context, wishID model.WishID) ([]*model.Assignment, error) {
	return r.list(r.db.WithContext(ctx).
		Where("wish_id = ?", wishID.String()).
		Order(assignmentOrder))
}

func (r *assignmentRepository) ListPrimaryByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Assignment, error) {
	return r.list(r.db.WithContext(ctx).
		Where("topic_id = ? AND is_primary = ?", topicID.String(), true).
		Order(assignmentOrder))
}

func (r *assignmentRepository) list(query *gorm.DB) ([]*model.Assignment, error) {
	var rows []assignmentRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list assignments")
	}
	assignments := make([]*model.Assignment, len(rows))
	for i := range rows {
		assignments[i] = rows[i].toModel()
	}
	return assignments, nil
}
