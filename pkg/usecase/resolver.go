package usecase

import (
	"time"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/service/topic"
)

// resolveInput is the clustered state of one run. Wishes, Points and the
// cluster result are aligned by index.
type resolveInput struct {
	Run      *model.ModelUpdate
	Config   model.TrainingConfig
	Wishes   []*model.Wish
	Clusters *model.ClusterResult
	Points   []model.Point2D
	Topics   []*topic.BuiltTopic

	// ActiveTopics are the topics active before this run. Members maps each of
	// them to the non-deleted wishes currently referencing it.
	ActiveTopics []*model.Topic
	Members      map[model.TopicID][]model.WishID

	Now time.Time
}

// resolveAssignments turns the clustering of a run into the rows it commits.
//
// A clustered wish gets a new primary assignment to its cluster's topic. A
// noise wish keeps its current topic and is marked carried forward, or stays
// unassigned when it has none. A previously active topic is superseded when
// every one of its current members was reassigned by this run.
func resolveAssignments(in *resolveInput) *model.TrainingCommit {
	commit := &model.TrainingCommit{}

	byLabel := make(map[int]*model.Topic, len(in.Topics))
	for _, b := range in.Topics {
		t := &model.Topic{
			ID:             model.NewTopicID(),
			Name:           b.Label.Name,
			Description:    b.Label.Description,
			LabelSource:    b.LabelSource,
			Terms:          b.Terms,
			WishCount:      len(b.Members),
			ClusterLabel:   b.ClusterLabel,
			EmbeddingModel: in.Config.EmbeddingModel,
			ModelUpdateID:  in.Run.ID,
			ModelVersion:   in.Run.Version,
			CreatedAt:      in.Now,
			UpdatedAt:      in.Now,
		}
		byLabel[b.ClusterLabel] = t
		commit.Topics = append(commit.Topics, t)
	}

	reassigned := make(map[model.WishID]struct{}, len(in.Wishes))
	for i, w := range in.Wishes {
		label := in.Clusters.Labels[i]
		point := &model.ProjectionPoint{
			ModelUpdateID: in.Run.ID,
			WishID:        w.ID,
			ClusterLabel:  label,
		}
		if i < len(in.Points) {
			point.X, point.Y = in.Points[i].X, in.Points[i].Y
		}

		t, clustered := byLabel[label]
		switch {
		case clustered:
			commit.Assignments = append(commit.Assignments, &model.Assignment{
				WishID:        w.ID,
				TopicID:       t.ID,
				Probability:   model.ClampProbability(in.Clusters.Probabilities[i]),
				IsPrimary:     true,
				ModelUpdateID: in.Run.ID,
				AssignedAt:    in.Now,
			})
			reassigned[w.ID] = struct{}{}
			point.TopicID = t.ID.Ptr()

		case w.HasTopic():
			commit.CarriedForward = append(commit.CarriedForward, w.ID)
			point.TopicID = w.TopicID.Ptr()
		}
		commit.Projection = append(commit.Projection, point)
	}

	for _, t := range in.ActiveTopics {
		if allReassigned(in.Members[t.ID], reassigned) {
			commit.Superseded = append(commit.Superseded, t.ID)
		}
	}

	return commit
}

func allReassigned(members []model.WishID, reassigned map[model.WishID]struct{}) bool {
	for _, id := range members {
		if _, ok := reassigned[id]; !ok {
			return false
		}
	}
	return true
}
