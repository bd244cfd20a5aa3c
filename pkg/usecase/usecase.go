package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type UseCases struct {
	repo             interfaces.Repository
	moderator        interfaces.Moderator
	trainingOpts     []TrainingOption
	schedulerEnabled bool

	Wish     *WishUseCase
	Topic    *TopicUseCase
	Training *TrainingUseCase
}

type Option func(*UseCases)

func WithModerator(moderator interfaces.Moderator) Option {
	return func(uc *UseCases) {
		uc.moderator = moderator
	}
}

// WithTraining passes options to the training use case
func WithTraining(opts ...TrainingOption) Option {
	return func(uc *UseCases) {
		uc.trainingOpts = append(uc.trainingOpts, opts...)
	}
}

// WithSchedulerEnabled is reported by Stats
func WithSchedulerEnabled(enabled bool) Option {
	return func(uc *UseCases) {
		uc.schedulerEnabled = enabled
	}
}

func New(repo interfaces.Repository, normalizer interfaces.Normalizer, embedder interfaces.Embedder, opts ...Option) *UseCases {
	uc := &UseCases{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Wish = NewWishUseCase(repo, uc.moderator)
	uc.Topic = NewTopicUseCase(repo)
	uc.Training = NewTrainingUseCase(repo, normalizer, embedder, uc.trainingOpts...)

	return uc
}

// Stats summarizes the state of the system
type Stats struct {
	TotalWishes      int
	UnassignedWishes int
	ActiveTopics     int
	LatestRun        *model.ModelUpdate
	TrainingRunning  bool
	SchedulerEnabled bool
}

func (uc *UseCases) Stats(ctx context.Context) (*Stats, error) {
	wishes, err := uc.repo.Wish().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list wishes")
	}
	topics, err := uc.repo.Topic().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active topics")
	}

	stats := &Stats{
		TotalWishes:      len(wishes),
		ActiveTopics:     len(topics),
		TrainingRunning:  uc.Training.IsRunning(),
		SchedulerEnabled: uc.schedulerEnabled,
	}
	for _, w := range wishes {
		if !w.HasTopic() {
			stats.UnassignedWishes++
		}
	}

	latest, err := uc.repo.ModelUpdate().GetLatest(ctx)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to get latest training run")
	}
	stats.LatestRun = latest
	return stats, nil
}
