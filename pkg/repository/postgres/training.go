package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"gorm.io/gorm"
)

type trainingRepository struct {
	db *gorm.DB
}

func (r *trainingRepository) Commit(ctx context.Context, commit *model.TrainingCommit) error {
	if commit == nil || commit.Run == nil {
		return goerr.New("training commit requires a run")
	}
	runID := commit.Run.ID

	topics := make([]*topicRow, 0, len(commit.Topics))
	for _, t := range commit.Topics {
		row, err := toTopicRow(t)
		if err != nil {
			return err
		}
		topics = append(topics, row)
	}

	now := time.Now().UTC()
	completedAt := now
	if commit.Run.CompletedAt != nil {
		completedAt = *commit.Run.CompletedAt
	}

	run := *commit.Run
	run.Status = types.RunStatusCompleted
	run.CompletedAt = &completedAt
	runRow, err := toModelUpdateRow(&run)
	if err != nil {
		return err
	}

	assignedIDs := make([]string, 0, len(commit.Assignments))
	byTopic := make(map[string][]string)
	assignments := make([]*assignmentRow, 0, len(commit.Assignments))
	for _, a := range commit.Assignments {
		row := toAssignmentRow(a)
		row.IsPrimary = true
		assignments = append(assignments, row)
		assignedIDs = append(assignedIDs, row.WishID)
		byTopic[row.TopicID] = append(byTopic[row.TopicID], row.WishID)
	}

	carried := make([]string, len(commit.CarriedForward))
	for i, id := range commit.CarriedForward {
		carried[i] = id.String()
	}
	superseded := make([]string, len(commit.Superseded))
	for i, id := range commit.Superseded {
		superseded[i] = id.String()
	}
	points := make([]*projectionRow, len(commit.Projection))
	for i, p := range commit.Projection {
		points[i] = toProjectionRow(i, p)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lease, err := lockLease(tx)
		if err != nil {
			return err
		}
		if _, err := runningRun(tx, runID); err != nil {
			return err
		}

		for _, batch := range chunks(assignedIDs, batchSize) {
			var found int64
			if err := tx.Model(&wishRow{}).Where("id IN ? AND is_deleted = ?", batch, false).Count(&found).Error; err != nil {
				return goerr.Wrap(err, "failed to check assigned wishes")
			}
			if int(found) != len(uniqueStrings(batch)) {
				return goerr.Wrap(model.ErrNotFound, "assigned wish not found",
					goerr.V("run_id", runID))
			}
		}

		if len(topics) > 0 {
			if err := tx.CreateInBatches(topics, batchSize).Error; err != nil {
				return goerr.Wrap(err, "failed to create topics", goerr.V("run_id", runID))
			}
		}

		for _, batch := range chunks(assignedIDs, batchSize) {
			if err := tx.Model(&assignmentRow{}).
				Where("wish_id IN ? AND is_primary = ?", batch, true).
				Update("is_primary", false).Error; err != nil {
				return goerr.Wrap(err, "failed to demote previous primary assignments")
			}
		}
		if len(assignments) > 0 {
			if err := tx.CreateInBatches(assignments, batchSize).Error; err != nil {
				return goerr.Wrap(err, "failed to create assignments", goerr.V("run_id", runID))
			}
		}
		for topicID, wishIDs := range byTopic {
			for _, batch := range chunks(wishIDs, batchSize) {
				if err := tx.Model(&wishRow{}).Where("id IN ?", batch).
					Updates(map[string]any{
						"topic_id":   topicID,
						"updated_at": now,
					}).Error; err != nil {
					return goerr.Wrap(err, "failed to update wish topics", goerr.V("topic_id", topicID))
				}
			}
		}

		for _, batch := range chunks(carried, batchSize) {
			if err := tx.Model(&assignmentRow{}).
				Where("wish_id IN ? AND is_primary = ?", batch, true).
				Updates(map[string]any{
					"carried_forward": true,
					"carried_by":      runID.String(),
				}).Error; err != nil {
				return goerr.Wrap(err, "failed to mark carried-forward assignments")
			}
		}

		for _, batch := range chunks(superseded, batchSize) {
			if err := tx.Model(&topicRow{}).
				Where("id IN ? AND superseded_at IS NULL", batch).
				Updates(map[string]any{
					"superseded_at": completedAt,
					"superseded_by": runID.String(),
					"updated_at":    now,
				}).Error; err != nil {
				return goerr.Wrap(err, "failed to supersede topics")
			}
		}

		if len(points) > 0 {
			if err := tx.CreateInBatches(points, batchSize).Error; err != nil {
				return goerr.Wrap(err, "failed to store projection", goerr.V("run_id", runID))
			}
		}

		if err := tx.Save(runRow).Error; err != nil {
			return goerr.Wrap(err, "failed to complete model update", goerr.V("run_id", runID))
		}
		return releaseLease(tx, lease, runID)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit training run", goerr.V("run_id", runID))
	}
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
