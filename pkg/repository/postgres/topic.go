package postgres

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gorm.io/gorm"
)

type topicRepository struct {
	db *gorm.DB
}

const topicOrder = "model_version DESC, cluster_label ASC, id ASC"

func (r *topicRepository) Get(ctx context.Context, id model.TopicID) (*model.Topic, error) {
	var row topicRow
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "topic not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get topic", goerr.V("id", id))
	}
	return row.toModel()
}

func (r *topicRepository) GetMany(ctx context.Context, ids []model.TopicID) (map[model.TopicID]*model.Topic, error) {
	result := make(map[model.TopicID]*model.Topic, len(ids))
	keys := make([]string, 0, len(ids))
	seen := make(map[model.TopicID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id.String())
	}

	for _, batch := range chunks(keys, batchSize) {
		var rows []topicRow
		if err := r.db.WithContext(ctx).Where("id IN ?", batch).Find(&rows).Error; err != nil {
			return nil, goerr.Wrap(err, "failed to get topics", goerr.V("count", len(batch)))
		}
		for i := range rows {
			t, err := rows[i].toModel()
			if err != nil {
				return nil, err
			}
			result[t.ID] = t
		}
	}
	return result, nil
}

func (r *topicRepository) ListActive(ctx context.Context) ([]*model.Topic, error) {
	return r.list(r.db.WithContext(ctx).Where("superseded_at IS NULL"))
}

func (r *topicRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.Topic, error) {
	return r.list(r.db.WithContext(ctx).Where("model_update_id = ?", id.String()))
}

func (r *topicRepository) list(query *gorm.DB) ([]*model.Topic, error) {
	var rows []topicRow
	if err := query.Order(topicOrder).Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list topics")
	}
	topics := make([]*model.Topic, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, nil
}
