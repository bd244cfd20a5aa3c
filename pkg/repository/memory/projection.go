package memory

import (
	"context"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type projectionRepository struct {
	m *Memory
}

func (r *projectionRepository) ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.ProjectionPoint, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	points := r.m.projections[id]
	result := make([]*model.ProjectionPoint, len(points))
	for i, p := range points {
		result[i] = copyProjectionPoint(p)
	}
	return result, nil
}
