package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type topicRepository struct {
	m *Memory
}

func (r *topicRepository) Get(ctx context.Context, id model.TopicID) (*model.Topic, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	topic, exists := r.m.topics[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "topic not found", goerr.V("id", id))
	}
	return copyTopic(topic), nil
}

func (r *topicRepository) GetMany(ctx context.Context, ids []model.TopicID) (map[model.TopicID]*model.Topic, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	result := make(map[model.TopicID]*model.Topic, len(ids))
	for _, id := range ids {
		if topic, exists := r.m.topics[id]; exists {
			result[id] = copyTopic(topic)
		}
	}
	return result, nil
}

func (r *topicRepository) ListActive(ctx context.Context) ([]*model.Topic, error) {
	return r.list(func(t *model.Topic) bool { return t.IsActive() }), nil
}

func (r *topicRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.Topic, error) {
	return r.list(func(t *model.Topic) bool { return t.ModelUpdateID == id }), nil
}

func (r *topicRepository) list(match func(*model.Topic) bool) []*model.Topic {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	topics := make([]*model.Topic, 0)
	for _, t := range r.m.topics {
		if match(t) {
			topics = append(topics, copyTopic(t))
		}
	}
	slices.SortFunc(topics, func(a, b *model.Topic) int {
		if c := cmp.Compare(b.ModelVersion, a.ModelVersion); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ClusterLabel, b.ClusterLabel); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return topics
}
