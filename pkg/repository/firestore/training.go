package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

type trainingRepository struct {
	f *Firestore
}

// Commit applies a run in one Firestore transaction. Firestore requires all
// reads to precede writes, so the current wish and assignment state is
// loaded first and the write set is derived from it.
func (r *trainingRepository) Commit(ctx context.Context, commit *model.TrainingCommit) error {
	if commit == nil || commit.Run == nil {
		return goerr.New("training commit requires a run")
	}

	runID := commit.Run.ID
	runRef := r.f.collection(CollectionModelUpdates).Doc(runID.String())
	leaseRef := r.f.leaseRef()
	wishes := r.f.collection(CollectionWishes)
	topics := r.f.collection(CollectionTopics)
	assignments := r.f.collection(CollectionAssignments)
	projections := r.f.collection(CollectionProjections)

	assigned := make(map[model.WishID]*model.Assignment, len(commit.Assignments))
	var wishRefs []*firestore.DocumentRef
	for _, a := range commit.Assignments {
		assigned[a.WishID] = a
		wishRefs = append(wishRefs, wishes.Doc(a.WishID.String()))
	}
	for _, id := range commit.CarriedForward {
		if _, dup := assigned[id]; !dup {
			wishRefs = append(wishRefs, wishes.Doc(id.String()))
		}
	}

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		run, err := getRun(tx, runRef)
		if err != nil {
			return err
		}
		if run.Status != types.RunStatusRunning {
			return goerr.Wrap(model.ErrRunNotRunning, "model update is not running", goerr.V("id", runID), goerr.V("status", run.Status))
		}
		lease, err := getLease(tx, leaseRef)
		if err != nil {
			return err
		}

		// current topic of every touched wish points at its primary assignment
		currentTopic := make(map[model.WishID]model.TopicID, len(wishRefs))
		if len(wishRefs) > 0 {
			docs, err := tx.GetAll(wishRefs)
			if err != nil {
				return goerr.Wrap(err, "failed to get wishes", goerr.V("count", len(wishRefs)))
			}
			for _, doc := range docs {
				if !doc.Exists() {
					if _, ok := assigned[model.WishID(doc.Ref.ID)]; ok {
						return goerr.Wrap(model.ErrNotFound, "assigned wish not found", goerr.V("wish_id", doc.Ref.ID))
					}
					continue
				}
				var d wishDoc
				if err := doc.DataTo(&d); err != nil {
					return goerr.Wrap(err, "failed to unmarshal wish", goerr.V("docID", doc.Ref.ID))
				}
				if _, ok := assigned[model.WishID(doc.Ref.ID)]; ok && d.IsDeleted {
					return goerr.Wrap(model.ErrNotFound, "assigned wish was deleted", goerr.V("wish_id", doc.Ref.ID))
				}
				if d.TopicID != "" {
					currentTopic[model.WishID(d.ID)] = model.TopicID(d.TopicID)
				}
			}
		}

		var primaryRefs []*firestore.DocumentRef
		for wishID, topicID := range currentTopic {
			primaryRefs = append(primaryRefs, assignments.Doc(assignmentDocID(wishID, topicID)))
		}
		primaries := make(map[string]bool, len(primaryRefs))
		if len(primaryRefs) > 0 {
			docs, err := tx.GetAll(primaryRefs)
			if err != nil {
				return goerr.Wrap(err, "failed to get primary assignments", goerr.V("count", len(primaryRefs)))
			}
			for _, doc := range docs {
				if doc.Exists() {
					isPrimary, err := doc.DataAt("IsPrimary")
					primaries[doc.Ref.ID] = err == nil && isPrimary == true
				}
			}
		}

		var supersededRefs []*firestore.DocumentRef
		if len(commit.Superseded) > 0 {
			refs := make([]*firestore.DocumentRef, len(commit.Superseded))
			for i, id := range commit.Superseded {
				refs[i] = topics.Doc(id.String())
			}
			docs, err := tx.GetAll(refs)
			if err != nil {
				return goerr.Wrap(err, "failed to get superseded topics", goerr.V("count", len(refs)))
			}
			for _, doc := range docs {
				if !doc.Exists() {
					continue
				}
				active, err := doc.DataAt("Active")
				if err == nil && active == true {
					supersededRefs = append(supersededRefs, doc.Ref)
				}
			}
		}

		// writes
		now := time.Now().UTC()
		completedAt := now
		if commit.Run.CompletedAt != nil {
			completedAt = *commit.Run.CompletedAt
		}

		for _, t := range commit.Topics {
			if err := tx.Create(topics.Doc(t.ID.String()), toTopicDoc(t)); err != nil {
				return goerr.Wrap(err, "failed to create topic", goerr.V("topic_id", t.ID))
			}
		}

		for _, a := range commit.Assignments {
			if prev, ok := currentTopic[a.WishID]; ok {
				prevID := assignmentDocID(a.WishID, prev)
				if primaries[prevID] {
					if err := tx.Update(assignments.Doc(prevID), []firestore.Update{
						{Path: "IsPrimary", Value: false},
					}); err != nil {
						return goerr.Wrap(err, "failed to demote primary assignment", goerr.V("assignment", prevID))
					}
				}
			}

			stored := *a
			stored.IsPrimary = true
			if err := tx.Set(assignments.Doc(assignmentDocID(a.WishID, a.TopicID)), toAssignmentDoc(&stored)); err != nil {
				return goerr.Wrap(err, "failed to set assignment", goerr.V("wish_id", a.WishID))
			}
			if err := tx.Update(wishes.Doc(a.WishID.String()), []firestore.Update{
				{Path: "TopicID", Value: a.TopicID.String()},
				{Path: "UpdatedAt", Value: now},
			}); err != nil {
				return goerr.Wrap(err, "failed to update wish topic", goerr.V("wish_id", a.WishID))
			}
		}

		for _, wishID := range commit.CarriedForward {
			if _, dup := assigned[wishID]; dup {
				continue
			}
			topicID, ok := currentTopic[wishID]
			if !ok {
				continue
			}
			docID := assignmentDocID(wishID, topicID)
			if !primaries[docID] {
				continue
			}
			if err := tx.Update(assignments.Doc(docID), []firestore.Update{
				{Path: "CarriedForward", Value: true},
				{Path: "CarriedBy", Value: runID.String()},
			}); err != nil {
				return goerr.Wrap(err, "failed to carry assignment forward", goerr.V("assignment", docID))
			}
		}

		for _, ref := range supersededRefs {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "Active", Value: false},
				{Path: "SupersededAt", Value: completedAt},
				{Path: "SupersededBy", Value: runID.String()},
				{Path: "UpdatedAt", Value: now},
			}); err != nil {
				return goerr.Wrap(err, "failed to supersede topic", goerr.V("topic_id", ref.ID))
			}
		}

		for _, chunk := range toProjectionChunks(runID, commit.Projection) {
			if err := tx.Set(projections.Doc(projectionChunkID(runID, chunk.Chunk)), chunk); err != nil {
				return goerr.Wrap(err, "failed to write projection chunk", goerr.V("chunk", chunk.Chunk))
			}
		}

		completed := *commit.Run
		completed.Status = types.RunStatusCompleted
		completed.CompletedAt = &completedAt
		if err := tx.Set(runRef, toModelUpdateDoc(&completed)); err != nil {
			return goerr.Wrap(err, "failed to complete model update", goerr.V("id", runID))
		}

		if lease.RunID == runID.String() {
			return tx.Set(leaseRef, &leaseDoc{LastVersion: lease.LastVersion})
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit training run", goerr.V("id", runID))
	}
	return nil
}
