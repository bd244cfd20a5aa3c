package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const abandonedRunError = "run abandoned: heartbeat expired"

type modelUpdateRepository struct {
	db *gorm.DB
}

// lockLease returns the training lease row locked for the rest of tx,
// creating it on first use.
func lockLease(tx *gorm.DB) (*leaseRow, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&leaseRow{Name: trainingLease}).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to initialize training lease")
	}

	var lease leaseRow
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", trainingLease).
		First(&lease).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to lock training lease")
	}
	return &lease, nil
}

func releaseLease(tx *gorm.DB, lease *leaseRow, id model.ModelUpdateID) error {
	if lease.RunID != id.String() {
		return nil
	}
	if err := tx.Model(&leaseRow{}).Where("name = ?", trainingLease).
		Update("run_id", "").Error; err != nil {
		return goerr.Wrap(err, "failed to release training lease", goerr.V("id", id))
	}
	return nil
}

// runningRun loads and locks a run that must still be running
func runningRun(tx *gorm.DB, id model.ModelUpdateID) (*modelUpdateRow, error) {
	var row modelUpdateRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get model update", goerr.V("id", id))
	}
	if row.Status != types.RunStatusRunning.String() {
		return nil, goerr.Wrap(model.ErrRunNotRunning, "model update is not running",
			goerr.V("id", id),
			goerr.V("status", row.Status))
	}
	return &row, nil
}

func (r *modelUpdateRepository) Begin(ctx context.Context, run *model.ModelUpdate, staleAfter time.Duration) (*model.ModelUpdate, error) {
	created := *run
	if created.ID == "" {
		created.ID = model.NewModelUpdateID()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lease, err := lockLease(tx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if lease.RunID != "" {
			var holder modelUpdateRow
			err := tx.Where("id = ?", lease.RunID).First(&holder).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				// dangling lease, nothing to fail
			case err != nil:
				return goerr.Wrap(err, "failed to get lease holder", goerr.V("holder", lease.RunID))
			case holder.Status == types.RunStatusRunning.String():
				current, err := holder.toModel()
				if err != nil {
					return err
				}
				if !current.IsStale(now, staleAfter) {
					return goerr.Wrap(model.ErrRunInProgress, "training run lease is held",
						goerr.V("holder", holder.ID),
						goerr.V("version", holder.Version))
				}
				if err := tx.Model(&modelUpdateRow{}).Where("id = ?", holder.ID).
					Updates(map[string]any{
						"status":       types.RunStatusFailed.String(),
						"error":        abandonedRunError,
						"completed_at": now,
					}).Error; err != nil {
					return goerr.Wrap(err, "failed to fail abandoned run", goerr.V("holder", holder.ID))
				}
			}
		}

		created.Version = lease.LastVersion + 1
		created.Status = types.RunStatusRunning
		if created.StartedAt.IsZero() {
			created.StartedAt = now
		}
		created.HeartbeatAt = created.StartedAt
		created.CompletedAt = nil

		row, err := toModelUpdateRow(&created)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return goerr.Wrap(err, "failed to create model update", goerr.V("id", created.ID))
		}

		if err := tx.Model(&leaseRow{}).Where("name = ?", trainingLease).
			Updates(map[string]any{
				"run_id":       created.ID.String(),
				"last_version": created.Version,
			}).Error; err != nil {
			return goerr.Wrap(err, "failed to acquire training lease", goerr.V("id", created.ID))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrRunInProgress) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to begin training run")
	}
	return &created, nil
}

func (r *modelUpdateRepository) Heartbeat(ctx context.Context, id model.ModelUpdateID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := runningRun(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&modelUpdateRow{}).Where("id = ?", id.String()).
			Update("heartbeat_at", at).Error; err != nil {
			return goerr.Wrap(err, "failed to record heartbeat", goerr.V("id", id))
		}
		return nil
	})
}

func (r *modelUpdateRepository) Fail(ctx context.Context, id model.ModelUpdateID, reason string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lease, err := lockLease(tx)
		if err != nil {
			return err
		}
		if _, err := runningRun(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&modelUpdateRow{}).Where("id = ?", id.String()).
			Updates(map[string]any{
				"status":       types.RunStatusFailed.String(),
				"error":        reason,
				"completed_at": at,
			}).Error; err != nil {
			return goerr.Wrap(err, "failed to mark model update failed", goerr.V("id", id))
		}
		return releaseLease(tx, lease, id)
	})
}

func (r *modelUpdateRepository) Get(ctx context.Context, id model.ModelUpdateID) (*model.ModelUpdate, error) {
	var row modelUpdateRow
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get model update", goerr.V("id", id))
	}
	return row.toModel()
}

func (r *modelUpdateRepository) GetLatest(ctx context.Context) (*model.ModelUpdate, error) {
	runs, err := r.list(r.db.WithContext(ctx), 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) GetLatestCompleted(ctx context.Context) (*model.ModelUpdate, error) {
	runs, err := r.list(r.db.WithContext(ctx).
		Where("status = ?", types.RunStatusCompleted.String()), 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no completed model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) List(ctx context.Context, limit int) ([]*model.ModelUpdate, error) {
	return r.list(r.db.WithContext(ctx), limit)
}

func (r *modelUpdateRepository) list(query *gorm.DB, limit int) ([]*model.ModelUpdate, error) {
	query = query.Order("version DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []modelUpdateRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list model updates")
	}
	runs := make([]*model.ModelUpdate, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		runs = append(runs, u)
	}
	return runs, nil
}
