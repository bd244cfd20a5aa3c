package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/repository/memory"
	"github.com/secmon-lab/wishwell/pkg/usecase"
)

func testTrainingConfig() model.TrainingConfig {
	cfg := model.DefaultTrainingConfig()
	seed := int64(42)
	cfg.Seed = &seed
	return cfg
}

func TestTrainingUseCase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wishes := seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	notifier := &recordingNotifier{}
	archiver := &recordingArchiver{}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()),
		usecase.WithNotifier(notifier),
		usecase.WithArchiver(archiver),
	)

	run, err := uc.Run(ctx, types.TriggerManual)
	gt.NoError(t, err).Required()
	gt.Value(t, run.Status).Equal(types.RunStatusCompleted)
	gt.Value(t, run.TopicsCreated).Equal(2)
	gt.Value(t, run.NoiseCount).Equal(3)
	gt.Value(t, run.WishesCount).Equal(27)
	gt.Value(t, run.Configuration.EmbeddingModel).Equal("blob-stub")

	stored, err := repo.ModelUpdate().Get(ctx, run.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Status).Equal(types.RunStatusCompleted)
	gt.Value(t, stored.TopicsCreated).Equal(2)

	topics, err := repo.Topic().ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, topics).Length(2).Required()
	for _, topic := range topics {
		gt.Value(t, topic.WishCount).Equal(12)
		gt.String(t, topic.Name).NotEqual("")
		gt.Value(t, topic.LabelSource).Equal(types.LabelSourceFallback)
		gt.Value(t, topic.ModelUpdateID).Equal(run.ID)
	}

	// the two groups land in different topics
	first, err := repo.Wish().Get(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	gt.Value(t, first.TopicID).NotNil()
	for _, w := range wishes[:12] {
		got, err := repo.Wish().Get(ctx, w.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, *got.TopicID).Equal(*first.TopicID)
	}
	travel, err := repo.Wish().Get(ctx, wishes[12].ID)
	gt.NoError(t, err).Required()
	gt.Value(t, travel.TopicID).NotNil()
	gt.Value(t, *travel.TopicID).NotEqual(*first.TopicID)

	for _, w := range wishes[24:] {
		got, err := repo.Wish().Get(ctx, w.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.TopicID).Nil()
	}

	for _, w := range wishes {
		history, err := repo.Assignment().ListByWish(ctx, w.ID)
		gt.NoError(t, err).Required()
		primaries := 0
		for _, a := range history {
			if a.IsPrimary {
				primaries++
				gt.Bool(t, a.Probability >= 0 && a.Probability <= 1).True()
			}
		}
		gt.Bool(t, primaries <= 1).True()
	}

	points, err := repo.Projection().ListByModelUpdate(ctx, run.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, points).Length(27)
	gt.Array(t, archiver.points).Length(27)

	gt.Array(t, notifier.runs).Length(1).Required()
	gt.Value(t, notifier.runs[0].Status).Equal(types.RunStatusCompleted)
	gt.Bool(t, uc.IsRunning()).False()
}

func TestTrainingUseCase_NoiseKeepsPreviousTopic(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wishes := seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	cfg := testTrainingConfig()
	first := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(cfg))
	_, err := first.Run(ctx, types.TriggerManual)
	gt.NoError(t, err).Required()

	before, err := repo.Wish().Get(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	healthTopic := *before.TopicID
	travelBefore, err := repo.Wish().Get(ctx, wishes[12].ID)
	gt.NoError(t, err).Required()
	travelTopic := *travelBefore.TopicID

	// the first health wish turns into an outlier on the next full run
	const moved = "grandpa"
	cfg.Scope = types.TrainingScopeFull
	second := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{
		outlier: func(input string) bool { return strings.Contains(input, moved) },
	}, usecase.WithTrainingConfig(cfg))

	run, err := second.Run(ctx, types.TriggerSchedule)
	gt.NoError(t, err).Required()
	gt.Value(t, run.Version).Equal(int64(2))
	gt.Value(t, run.NoiseCount).Equal(4)
	gt.Value(t, run.TopicsCreated).Equal(2)

	after, err := repo.Wish().Get(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	gt.Value(t, *after.TopicID).Equal(healthTopic)

	carried, err := repo.Assignment().GetPrimary(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, carried.CarriedForward).True()
	gt.Value(t, carried.CarriedBy).Equal(run.ID)

	// health topic still has a member, travel topic was fully replaced
	oldHealth, err := repo.Topic().Get(ctx, healthTopic)
	gt.NoError(t, err).Required()
	gt.Bool(t, oldHealth.IsActive()).True()
	oldTravel, err := repo.Topic().Get(ctx, travelTopic)
	gt.NoError(t, err).Required()
	gt.Bool(t, oldTravel.IsActive()).False()
	gt.Value(t, oldTravel.SupersededBy).Equal(run.ID)
	gt.Value(t, run.SupersededCount).Equal(1)

	active, err := repo.Topic().ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, active).Length(3)
}

func TestTrainingUseCase_BacklogSkipsAssignedWishes(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()))
	_, err := uc.Run(ctx, types.TriggerManual)
	gt.NoError(t, err).Required()

	// only the three noise wishes remain in the backlog
	_, err = uc.Run(ctx, types.TriggerSchedule)
	gt.Error(t, err).Is(model.ErrInsufficientData)

	runs, err := repo.ModelUpdate().List(ctx, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, runs).Length(1)
}

func TestTrainingUseCase_InsufficientData(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wishes := seedWishes(t, repo, healthWishes[:5])

	embedder := &blobEmbedder{}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), embedder,
		usecase.WithTrainingConfig(testTrainingConfig()))

	run, err := uc.Run(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrInsufficientData)
	gt.Value(t, run).Nil()
	gt.Value(t, embedder.calls).Equal(0)

	runs, err := repo.ModelUpdate().List(ctx, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, runs).Length(0)

	got, err := repo.Wish().Get(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.TopicID).Nil()
}

func TestTrainingUseCase_LabelerFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	calls := 0
	labeler := labelerFunc(func(ctx context.Context, terms, samples []string) (*model.TopicLabel, error) {
		calls++
		return nil, errStub
	})
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()),
		usecase.WithLabeler(labeler))

	run, err := uc.Run(ctx, types.TriggerManual)
	gt.NoError(t, err).Required()
	gt.Value(t, run.TopicsCreated).Equal(2)

	topics, err := repo.Topic().ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, topics).Length(2).Required()
	for _, topic := range topics {
		gt.String(t, topic.Name).Contains("Topic: ")
		gt.Value(t, topic.LabelSource).Equal(types.LabelSourceFallback)
	}
	gt.Bool(t, calls >= 2).True()
}

func TestTrainingUseCase_LabelerNamesTopics(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	labeler := labelerFunc(func(ctx context.Context, terms, samples []string) (*model.TopicLabel, error) {
		return &model.TopicLabel{Name: "About " + terms[0], Description: "labeled"}, nil
	})
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()),
		usecase.WithLabeler(labeler))

	_, err := uc.Run(ctx, types.TriggerManual)
	gt.NoError(t, err).Required()

	topics, err := repo.Topic().ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, topics).Length(2).Required()
	for _, topic := range topics {
		gt.String(t, topic.Name).Contains("About ")
		gt.Value(t, topic.LabelSource).Equal(types.LabelSourceLabeler)
	}
}

func TestTrainingUseCase_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	wishes := seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	notifier := &recordingNotifier{}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{err: errStub},
		usecase.WithTrainingConfig(testTrainingConfig()),
		usecase.WithNotifier(notifier))

	run, err := uc.Run(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrEmbedding)
	gt.Value(t, run.Status).Equal(types.RunStatusFailed)

	stored, err := repo.ModelUpdate().Get(ctx, run.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Status).Equal(types.RunStatusFailed)
	gt.String(t, stored.Error).Contains("stub failure")
	gt.Value(t, stored.CompletedAt).NotNil()

	topics, err := repo.Topic().ListActive(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, topics).Length(0)

	got, err := repo.Wish().Get(ctx, wishes[0].ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.TopicID).Nil()

	gt.Array(t, notifier.runs).Length(1).Required()
	gt.Value(t, notifier.runs[0].Status).Equal(types.RunStatusFailed)

	// the failed run released the lease
	_, err = usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig())).Run(ctx, types.TriggerManual)
	gt.NoError(t, err)
}

func TestTrainingUseCase_ConcurrentTrigger(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	embedder := &blobEmbedder{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), embedder,
		usecase.WithTrainingConfig(testTrainingConfig()))

	done, err := uc.Start(ctx, types.TriggerSchedule)
	gt.NoError(t, err).Required()

	select {
	case <-embedder.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("training did not reach the embedding stage")
	}
	gt.Bool(t, uc.IsRunning()).True()

	_, err = uc.Run(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrConcurrentRunRejected)
	_, err = uc.Start(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrConcurrentRunRejected)

	runs, err := repo.ModelUpdate().List(ctx, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, runs).Length(1).Required()
	gt.Value(t, runs[0].Status).Equal(types.RunStatusRunning)

	close(embedder.block)
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("training did not finish")
	}

	latest, err := repo.ModelUpdate().GetLatest(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, latest.ID).Equal(runs[0].ID)
	gt.Value(t, latest.Status).Equal(types.RunStatusCompleted)
	gt.Bool(t, uc.IsRunning()).False()
}

func TestTrainingUseCase_LeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	holder, err := repo.ModelUpdate().Begin(ctx, &model.ModelUpdate{Trigger: types.TriggerCLI}, time.Hour)
	gt.NoError(t, err).Required()

	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()))
	_, err = uc.Run(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrConcurrentRunRejected)

	runs, err := repo.ModelUpdate().List(ctx, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, runs).Length(1).Required()
	gt.Value(t, runs[0].ID).Equal(holder.ID)
	gt.Value(t, runs[0].Status).Equal(types.RunStatusRunning)
}

func TestTrainingUseCase_Cancelled(t *testing.T) {
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	ctx, cancel := context.WithCancel(context.Background())
	embedder := &blobEmbedder{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), embedder,
		usecase.WithTrainingConfig(testTrainingConfig()))

	go func() {
		<-embedder.entered
		cancel()
	}()

	run, err := uc.Run(ctx, types.TriggerManual)
	gt.Error(t, err).Is(context.Canceled)
	gt.Value(t, run.Status).Equal(types.RunStatusFailed)

	stored, err := repo.ModelUpdate().Get(context.Background(), run.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Status).Equal(types.RunStatusFailed)
}

func TestTrainingUseCase_ShutdownCancelsBackgroundRun(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seedWishes(t, repo, healthWishes, travelWishes, randomWishes)

	embedder := &blobEmbedder{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), embedder,
		usecase.WithTrainingConfig(testTrainingConfig()))

	triggerCtx, cancelTrigger := context.WithCancel(ctx)
	done, err := uc.Start(triggerCtx, types.TriggerSchedule)
	gt.NoError(t, err).Required()

	select {
	case <-embedder.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("training did not reach the embedding stage")
	}

	// the caller's context does not reach the background run
	cancelTrigger()
	time.Sleep(50 * time.Millisecond)
	gt.Bool(t, uc.IsRunning()).True()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	gt.NoError(t, uc.Shutdown(shutdownCtx))

	select {
	case <-done:
	default:
		t.Fatal("Shutdown returned before the run finished")
	}
	gt.Bool(t, uc.IsRunning()).False()

	runs, err := repo.ModelUpdate().List(ctx, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, runs).Length(1).Required()
	gt.Value(t, runs[0].Status).Equal(types.RunStatusFailed)
	gt.String(t, runs[0].Error).Contains("context canceled")

	// lease is free again
	_, err = repo.ModelUpdate().Begin(ctx, &model.ModelUpdate{Trigger: types.TriggerCLI}, time.Hour)
	gt.NoError(t, err)

	_, err = uc.Start(ctx, types.TriggerManual)
	gt.Error(t, err).Is(model.ErrConcurrentRunRejected)
}

func TestTrainingUseCase_ShutdownIdle(t *testing.T) {
	uc := usecase.NewTrainingUseCase(memory.New(), newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(testTrainingConfig()))
	gt.NoError(t, uc.Shutdown(context.Background()))

	_, err := uc.Start(context.Background(), types.TriggerSchedule)
	gt.Error(t, err).Is(model.ErrConcurrentRunRejected)
	gt.Bool(t, uc.IsRunning()).False()
}

func TestTrainingUseCase_InvalidConfig(t *testing.T) {
	repo := memory.New()
	seedWishes(t, repo, healthWishes)

	cfg := testTrainingConfig()
	cfg.MinClusterSize = 1
	uc := usecase.NewTrainingUseCase(repo, newTestNormalizer(t), &blobEmbedder{},
		usecase.WithTrainingConfig(cfg))

	_, err := uc.Run(context.Background(), types.TriggerManual)
	gt.Error(t, err).Is(model.ErrInvalidTrainingConfig)
}
