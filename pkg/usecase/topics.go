package usecase

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

type TopicUseCase struct {
	repo interfaces.Repository
}

func NewTopicUseCase(repo interfaces.Repository) *TopicUseCase {
	return &TopicUseCase{repo: repo}
}

// TopicSummary is an active topic with its current member count
type TopicSummary struct {
	Topic       *model.Topic
	MemberCount int
}

// TopicMember is a wish of a topic with its assignment probability
type TopicMember struct {
	Wish        *model.Wish
	Probability float64
}

type TopicDetail struct {
	Topic   *model.Topic
	Members []*TopicMember
}

// List returns active topics. popular orders by current member count,
// recent by creation, name alphabetically.
func (uc *TopicUseCase) List(ctx context.Context, sort types.TopicSort, limit int) ([]*TopicSummary, error) {
	topics, err := uc.repo.Topic().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active topics")
	}
	wishes, err := uc.repo.Wish().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list wishes")
	}

	counts := make(map[model.TopicID]int, len(topics))
	for _, w := range wishes {
		if w.HasTopic() {
			counts[*w.TopicID]++
		}
	}

	summaries := make([]*TopicSummary, len(topics))
	for i, t := range topics {
		summaries[i] = &TopicSummary{Topic: t, MemberCount: counts[t.ID]}
	}

	slices.SortStableFunc(summaries, func(a, b *TopicSummary) int {
		switch sort {
		case types.TopicSortRecent:
			if c := b.Topic.CreatedAt.Compare(a.Topic.CreatedAt); c != 0 {
				return c
			}
		case types.TopicSortName:
			if c := cmp.Compare(strings.ToLower(a.Topic.Name), strings.ToLower(b.Topic.Name)); c != 0 {
				return c
			}
		default:
			if c := cmp.Compare(b.MemberCount, a.MemberCount); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Topic.ID, b.Topic.ID)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Get returns a topic with its current members sorted by probability
func (uc *TopicUseCase) Get(ctx context.Context, id model.TopicID) (*TopicDetail, error) {
	t, err := uc.repo.Topic().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get topic", goerr.V("id", id))
	}

	wishes, err := uc.repo.Wish().ListByTopic(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list topic wishes", goerr.V("id", id))
	}
	assignments, err := uc.repo.Assignment().ListPrimaryByTopic(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list topic assignments", goerr.V("id", id))
	}

	probability := make(map[model.WishID]float64, len(assignments))
	for _, a := range assignments {
		probability[a.WishID] = a.Probability
	}

	members := make([]*TopicMember, len(wishes))
	for i, w := range wishes {
		members[i] = &TopicMember{Wish: w, Probability: probability[w.ID]}
	}
	slices.SortStableFunc(members, func(a, b *TopicMember) int {
		return cmp.Compare(b.Probability, a.Probability)
	})

	return &TopicDetail{Topic: t, Members: members}, nil
}

// Visualization is the 2D point cloud of the latest completed run. Run is
// nil before the first completed run.
type Visualization struct {
	Run    *model.ModelUpdate
	Points []*model.ProjectionPoint
}

func (uc *TopicUseCase) Visualization(ctx context.Context) (*Visualization, error) {
	run, err := uc.repo.ModelUpdate().GetLatestCompleted(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return &Visualization{}, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get latest completed run")
	}

	points, err := uc.repo.Projection().ListByModelUpdate(ctx, run.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projection", goerr.V("run_id", run.ID))
	}
	return &Visualization{Run: run, Points: points}, nil
}
