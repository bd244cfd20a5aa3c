package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

const abandonedRunError = "run abandoned: heartbeat expired"

type modelUpdateRepository struct {
	m *Memory
}

func (r *modelUpdateRepository) Begin(ctx context.Context, run *model.ModelUpdate, staleAfter time.Duration) (*model.ModelUpdate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := time.Now().UTC()
	if holder, exists := r.m.runs[r.m.lease.runID]; exists && holder.Status == types.RunStatusRunning {
		if !holder.IsStale(now, staleAfter) {
			return nil, goerr.Wrap(model.ErrRunInProgress, "training run lease is held",
				goerr.V("holder", holder.ID),
				goerr.V("version", holder.Version))
		}
		holder.Status = types.RunStatusFailed
		holder.Error = abandonedRunError
		holder.CompletedAt = &now
	}

	created := copyModelUpdate(run)
	if created.ID == "" {
		created.ID = model.NewModelUpdateID()
	}
	r.m.lease.lastVersion++
	created.Version = r.m.lease.lastVersion
	created.Status = types.RunStatusRunning
	if created.StartedAt.IsZero() {
		created.StartedAt = now
	}
	created.HeartbeatAt = created.StartedAt
	created.CompletedAt = nil

	r.m.runs[created.ID] = created
	r.m.lease.runID = created.ID
	return copyModelUpdate(created), nil
}

func (r *modelUpdateRepository) Heartbeat(ctx context.Context, id model.ModelUpdateID, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	run, err := r.m.runningRun(id)
	if err != nil {
		return err
	}
	run.HeartbeatAt = at
	return nil
}

func (r *modelUpdateRepository) Fail(ctx context.Context, id model.ModelUpdateID, reason string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	run, err := r.m.runningRun(id)
	if err != nil {
		return err
	}
	run.Status = types.RunStatusFailed
	run.Error = reason
	run.CompletedAt = &at
	r.m.releaseLease(id)
	return nil
}

func (r *modelUpdateRepository) Get(ctx context.Context, id model.ModelUpdateID) (*model.ModelUpdate, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	run, exists := r.m.runs[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", id))
	}
	return copyModelUpdate(run), nil
}

func (r *modelUpdateRepository) GetLatest(ctx context.Context) (*model.ModelUpdate, error) {
	runs := r.sorted(func(*model.ModelUpdate) bool { return true })
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) GetLatestCompleted(ctx context.Context) (*model.ModelUpdate, error) {
	runs := r.sorted(func(u *model.ModelUpdate) bool { return u.Status == types.RunStatusCompleted })
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no completed model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) List(ctx context.Context, limit int) ([]*model.ModelUpdate, error) {
	runs := r.sorted(func(*model.ModelUpdate) bool { return true })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *modelUpdateRepository) sorted(match func(*model.ModelUpdate) bool) []*model.ModelUpdate {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	runs := make([]*model.ModelUpdate, 0, len(r.m.runs))
	for _, u := range r.m.runs {
		if match(u) {
			runs = append(runs, copyModelUpdate(u))
		}
	}
	slices.SortFunc(runs, func(a, b *model.ModelUpdate) int {
		return cmp.Compare(b.Version, a.Version)
	})
	return runs
}

// runningRun must be called with the write lock held
func (m *Memory) runningRun(id model.ModelUpdateID) (*model.ModelUpdate, error) {
	run, exists := m.runs[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", id))
	}
	if run.Status != types.RunStatusRunning {
		return nil, goerr.Wrap(model.ErrRunNotRunning, "model update is not running",
			goerr.V("id", id),
			goerr.V("status", run.Status))
	}
	return run, nil
}

func (m *Memory) releaseLease(id model.ModelUpdateID) {
	if m.lease.runID == id {
		m.lease.runID = ""
	}
}
