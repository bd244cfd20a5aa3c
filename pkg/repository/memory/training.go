package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

type trainingRepository struct {
	m *Memory
}

func (r *trainingRepository) Commit(ctx context.Context, commit *model.TrainingCommit) error {
	if commit == nil || commit.Run == nil {
		return goerr.New("training commit requires a run")
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	// validate everything before the first write
	if _, err := r.m.runningRun(commit.Run.ID); err != nil {
		return err
	}
	for _, a := range commit.Assignments {
		if w, exists := r.m.wishes[a.WishID]; !exists || w.IsDeleted {
			return goerr.Wrap(model.ErrNotFound, "assigned wish not found", goerr.V("wish_id", a.WishID))
		}
	}

	now := time.Now().UTC()
	completedAt := now
	if commit.Run.CompletedAt != nil {
		completedAt = *commit.Run.CompletedAt
	}

	for _, t := range commit.Topics {
		r.m.topics[t.ID] = copyTopic(t)
	}

	for _, a := range commit.Assignments {
		if prev := r.m.primaryOf(a.WishID); prev != nil {
			prev.IsPrimary = false
		}
		stored := copyAssignment(a)
		stored.IsPrimary = true
		r.m.assignments[assignmentKey{wishID: a.WishID, topicID: a.TopicID}] = stored

		wish := r.m.wishes[a.WishID]
		wish.TopicID = a.TopicID.Ptr()
		wish.UpdatedAt = now
	}

	for _, wishID := range commit.CarriedForward {
		if prev := r.m.primaryOf(wishID); prev != nil {
			prev.CarriedForward = true
			prev.CarriedBy = commit.Run.ID
		}
	}

	for _, id := range commit.Superseded {
		if t, exists := r.m.topics[id]; exists && t.IsActive() {
			t.SupersededAt = &completedAt
			t.SupersededBy = commit.Run.ID
			t.UpdatedAt = now
		}
	}

	points := make([]*model.ProjectionPoint, len(commit.Projection))
	for i, p := range commit.Projection {
		points[i] = copyProjectionPoint(p)
	}
	r.m.projections[commit.Run.ID] = points

	run := copyModelUpdate(commit.Run)
	run.Status = types.RunStatusCompleted
	run.CompletedAt = &completedAt
	r.m.runs[run.ID] = run
	r.m.releaseLease(run.ID)

	return nil
}
