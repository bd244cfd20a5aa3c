package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/service/cluster"
	"github.com/secmon-lab/wishwell/pkg/service/reduction"
	"github.com/secmon-lab/wishwell/pkg/service/topic"
	"github.com/secmon-lab/wishwell/pkg/utils/async"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

const maxRunErrorLength = 1000

// TrainingUseCase runs the topic modeling pipeline. At most one run is
// active per process (in-process gate) and per store (lease taken by
// ModelUpdateRepository.Begin).
type TrainingUseCase struct {
	repo       interfaces.Repository
	normalizer interfaces.Normalizer
	embedder   interfaces.Embedder
	labeler    interfaces.Labeler
	notifier   interfaces.Notifier
	archiver   interfaces.Archiver
	config     model.TrainingConfig

	running atomic.Bool
	now     func() time.Time

	// background run started by Start
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     <-chan struct{}
	shutdown bool
}

type TrainingOption func(*TrainingUseCase)

func WithLabeler(labeler interfaces.Labeler) TrainingOption {
	return func(uc *TrainingUseCase) {
		uc.labeler = labeler
	}
}

func WithNotifier(notifier interfaces.Notifier) TrainingOption {
	return func(uc *TrainingUseCase) {
		uc.notifier = notifier
	}
}

func WithArchiver(archiver interfaces.Archiver) TrainingOption {
	return func(uc *TrainingUseCase) {
		uc.archiver = archiver
	}
}

func WithTrainingConfig(cfg model.TrainingConfig) TrainingOption {
	return func(uc *TrainingUseCase) {
		uc.config = cfg
	}
}

func WithClock(now func() time.Time) TrainingOption {
	return func(uc *TrainingUseCase) {
		uc.now = now
	}
}

func NewTrainingUseCase(repo interfaces.Repository, normalizer interfaces.Normalizer, embedder interfaces.Embedder, opts ...TrainingOption) *TrainingUseCase {
	uc := &TrainingUseCase{
		repo:       repo,
		normalizer: normalizer,
		embedder:   embedder,
		config:     model.DefaultTrainingConfig(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Config returns the configuration applied to new runs
func (uc *TrainingUseCase) Config() model.TrainingConfig {
	return uc.config
}

// IsRunning reports whether this process is executing a run
func (uc *TrainingUseCase) IsRunning() bool {
	return uc.running.Load()
}

// Run executes one training run synchronously. A trigger arriving while a
// run is active fails with model.ErrConcurrentRunRejected and changes
// nothing. Too few candidates fail with model.ErrInsufficientData before
// any write.
func (uc *TrainingUseCase) Run(ctx context.Context, trigger types.TriggerKind) (*model.ModelUpdate, error) {
	if !uc.running.CompareAndSwap(false, true) {
		logging.From(ctx).Info("training trigger skipped, run in progress", "trigger", trigger)
		return nil, goerr.Wrap(model.ErrConcurrentRunRejected, "training run in progress", goerr.V("trigger", trigger))
	}
	defer uc.running.Store(false)

	return uc.run(ctx, trigger)
}

// Start launches a run in the background and returns once the in-process
// gate is taken. The returned channel is closed when the run finishes. The
// run outlives ctx and is cancelled only by Shutdown.
func (uc *TrainingUseCase) Start(ctx context.Context, trigger types.TriggerKind) (<-chan struct{}, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.shutdown {
		return nil, goerr.Wrap(model.ErrConcurrentRunRejected, "training is shutting down", goerr.V("trigger", trigger))
	}
	if !uc.running.CompareAndSwap(false, true) {
		logging.From(ctx).Info("training trigger skipped, run in progress", "trigger", trigger)
		return nil, goerr.Wrap(model.ErrConcurrentRunRejected, "training run in progress", goerr.V("trigger", trigger))
	}

	done, cancel := async.Dispatch(ctx, "training", func(ctx context.Context) error {
		defer uc.running.Store(false)

		_, err := uc.run(ctx, trigger)
		switch {
		case errors.Is(err, model.ErrInsufficientData):
			logging.From(ctx).Info("training skipped", "reason", err.Error())
			return nil
		case errors.Is(err, model.ErrConcurrentRunRejected):
			logging.From(ctx).Info("training skipped, another run holds the lease")
			return nil
		}
		return err
	})
	uc.cancel = cancel
	uc.done = done
	return done, nil
}

// Shutdown rejects further Start calls and cancels the background run, if
// any. The run stops at its next cancellation point and is recorded as
// failed. Shutdown returns when the run has finished or ctx expires.
func (uc *TrainingUseCase) Shutdown(ctx context.Context) error {
	uc.mu.Lock()
	uc.shutdown = true
	cancel, done := uc.cancel, uc.done
	uc.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "training run did not stop before shutdown deadline")
	}
}

type candidates struct {
	wishes  []*model.Wish
	active  []*model.Topic
	members map[model.TopicID][]model.WishID
}

// selectCandidates loads the wishes eligible for scope. A wish whose topic
// is superseded or missing counts as unassigned for backlog runs.
func (uc *TrainingUseCase) selectCandidates(ctx context.Context, scope types.TrainingScope) (*candidates, error) {
	wishes, err := uc.repo.Wish().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list wishes")
	}
	active, err := uc.repo.Topic().ListActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list active topics")
	}

	isActive := make(map[model.TopicID]bool, len(active))
	for _, t := range active {
		isActive[t.ID] = true
	}

	c := &candidates{
		active:  active,
		members: make(map[model.TopicID][]model.WishID, len(active)),
	}
	for _, w := range wishes {
		current := w.HasTopic() && isActive[*w.TopicID]
		if current {
			c.members[*w.TopicID] = append(c.members[*w.TopicID], w.ID)
		}
		if scope == types.TrainingScopeFull || !current {
			c.wishes = append(c.wishes, w)
		}
	}
	return c, nil
}

func (uc *TrainingUseCase) run(ctx context.Context, trigger types.TriggerKind) (*model.ModelUpdate, error) {
	cfg := uc.config
	cfg.Scope = cfg.Scope.Normalize()
	cfg.EmbeddingModel = uc.embedder.Name()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := uc.selectCandidates(ctx, cfg.Scope)
	if err != nil {
		return nil, err
	}
	if len(c.wishes) < cfg.MinTrainingSize {
		return nil, goerr.Wrap(model.ErrInsufficientData, "not enough wishes to train",
			goerr.V("candidates", len(c.wishes)),
			goerr.V("min_training_size", cfg.MinTrainingSize),
			goerr.V("scope", cfg.Scope))
	}

	run, err := uc.repo.ModelUpdate().Begin(ctx, &model.ModelUpdate{
		Trigger:       trigger,
		WishesCount:   len(c.wishes),
		Configuration: cfg,
		StartedAt:     uc.now(),
	}, cfg.StaleRunTimeout)
	if err != nil {
		if errors.Is(err, model.ErrRunInProgress) {
			return nil, goerr.Wrap(fmt.Errorf("%w: %w", model.ErrConcurrentRunRejected, err), "training lease is held by another run")
		}
		return nil, goerr.Wrap(err, "failed to begin training run")
	}

	ctx = logging.With(ctx, logging.From(ctx).With("run_id", run.ID, "version", run.Version))
	logging.From(ctx).Info("training run started",
		"trigger", trigger,
		"scope", cfg.Scope,
		"candidates", len(c.wishes))

	commit, err := uc.train(ctx, run, cfg, c)
	if err == nil {
		err = uc.repo.Training().Commit(ctx, commit)
	}
	if err != nil {
		failed := uc.fail(ctx, run, err)
		uc.notify(ctx, failed)
		return failed, err
	}

	completed := commit.Run
	completed.Status = types.RunStatusCompleted
	logging.From(ctx).Info("training run completed",
		"topics_created", completed.TopicsCreated,
		"noise", completed.NoiseCount,
		"superseded", completed.SupersededCount,
		"duration", completed.Duration())

	if uc.archiver != nil {
		if err := uc.archiver.ArchiveProjection(ctx, completed, commit.Projection); err != nil {
			logging.From(ctx).Warn("failed to archive projection", "error", err)
		}
	}
	uc.notify(ctx, completed)

	return completed, nil
}

// train runs every pipeline stage and returns the rows to commit
func (uc *TrainingUseCase) train(ctx context.Context, run *model.ModelUpdate, cfg model.TrainingConfig, c *candidates) (*model.TrainingCommit, error) {
	wishes := c.wishes
	texts := make([]*model.NormalizedText, 0, len(wishes))
	degenerate := 0

	err := uc.stage(ctx, run, "normalize", func() error {
		kept := make([]*model.Wish, 0, len(wishes))
		for _, w := range wishes {
			text, err := uc.normalizer.Normalize(w.Content)
			if err != nil {
				logging.From(ctx).Warn("wish could not be normalized", "wish_id", w.ID, "error", err)
				text = &model.NormalizedText{Original: w.Content, Degenerate: true}
			}
			if text.Degenerate {
				degenerate++
				if cfg.DropDegenerate {
					continue
				}
			}
			kept = append(kept, w)
			texts = append(texts, text)
		}
		wishes = kept

		if degenerate == len(c.wishes) {
			return goerr.Wrap(model.ErrDegenerateInput, "every candidate is degenerate", goerr.V("count", degenerate))
		}
		if len(wishes) < cfg.MinTrainingSize {
			return goerr.Wrap(model.ErrInsufficientData, "not enough wishes after dropping degenerate texts",
				goerr.V("remaining", len(wishes)),
				goerr.V("min_training_size", cfg.MinTrainingSize))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	err = uc.stage(ctx, run, "embed", func() error {
		inputs := make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = t.EmbeddingInput()
		}
		var err error
		vectors, err = uc.embedder.Embed(ctx, inputs)
		if err != nil {
			return err
		}
		if len(vectors) != len(inputs) {
			return goerr.Wrap(model.ErrEmbedding, "embedding count mismatch",
				goerr.V("requested", len(inputs)),
				goerr.V("returned", len(vectors)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var reduced [][]float64
	err = uc.stage(ctx, run, "reduce", func() error {
		var err error
		reduced, err = reduction.NewPCA(cfg.Components, cfg.MinClusterSize).Reduce(ctx, vectors)
		return err
	})
	if err != nil {
		return nil, err
	}

	var points []model.Point2D
	err = uc.stage(ctx, run, "project", func() error {
		var err error
		points, err = reduction.NewProjector(reduction.WithSeed(cfg.Seed)).Project2D(ctx, vectors)
		return err
	})
	if err != nil {
		return nil, err
	}

	var clusters *model.ClusterResult
	err = uc.stage(ctx, run, "cluster", func() error {
		engine, err := cluster.New(cfg.MinClusterSize, cluster.WithMinSamples(cfg.EffectiveMinSamples()))
		if err != nil {
			return err
		}
		clusters, err = engine.Cluster(ctx, reduced)
		return err
	})
	if err != nil {
		return nil, err
	}

	var built []*topic.BuiltTopic
	err = uc.stage(ctx, run, "build", func() error {
		opts := []topic.Option{topic.WithLabelTimeout(cfg.LabelTimeout)}
		if uc.labeler != nil {
			opts = append(opts, topic.WithLabeler(uc.labeler))
		}
		var err error
		built, err = topic.New(opts...).Build(ctx, topic.BuildInput{
			Texts:      texts,
			Clusters:   clusters,
			TopTerms:   cfg.TopTerms,
			SampleSize: cfg.SampleSize,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "training cancelled before commit")
	}

	now := uc.now()
	commit := resolveAssignments(&resolveInput{
		Run:          run,
		Config:       cfg,
		Wishes:       wishes,
		Clusters:     clusters,
		Points:       points,
		Topics:       built,
		ActiveTopics: c.active,
		Members:      c.members,
		Now:          now,
	})

	completed := *run
	completed.WishesCount = len(wishes)
	completed.TopicsCreated = len(commit.Topics)
	completed.NoiseCount = clusters.NoiseCount()
	completed.DegenerateCount = degenerate
	completed.SupersededCount = len(commit.Superseded)
	completed.HeartbeatAt = now
	completed.CompletedAt = &now
	commit.Run = &completed

	return commit, nil
}

// stage runs one pipeline step, then records a heartbeat. A run that lost
// its lease to a stale takeover stops here.
func (uc *TrainingUseCase) stage(ctx context.Context, run *model.ModelUpdate, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "training cancelled", goerr.V("stage", name))
	}

	started := uc.now()
	if err := fn(); err != nil {
		return goerr.Wrap(err, "training stage failed", goerr.V("stage", name))
	}
	logging.From(ctx).Info("training stage finished", "stage", name, "elapsed", uc.now().Sub(started))

	if err := uc.repo.ModelUpdate().Heartbeat(ctx, run.ID, uc.now()); err != nil {
		if errors.Is(err, model.ErrRunNotRunning) || errors.Is(err, model.ErrNotFound) {
			return goerr.Wrap(err, "training run lost its lease", goerr.V("stage", name))
		}
		logging.From(ctx).Warn("failed to record heartbeat", "stage", name, "error", err)
	}
	return nil
}

// fail marks the run failed. The store keeps nothing else from the run.
func (uc *TrainingUseCase) fail(ctx context.Context, run *model.ModelUpdate, cause error) *model.ModelUpdate {
	ctx = context.WithoutCancel(ctx)
	now := uc.now()
	reason := cause.Error()
	if len(reason) > maxRunErrorLength {
		reason = reason[:maxRunErrorLength]
	}

	logging.From(ctx).Error("training run failed", "error", cause)
	if err := uc.repo.ModelUpdate().Fail(ctx, run.ID, reason, now); err != nil {
		logging.From(ctx).Error("failed to mark training run failed", "error", err)
	}

	failed := *run
	failed.Status = types.RunStatusFailed
	failed.Error = reason
	failed.CompletedAt = &now
	return &failed
}

func (uc *TrainingUseCase) notify(ctx context.Context, run *model.ModelUpdate) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.NotifyRun(context.WithoutCancel(ctx), run); err != nil {
		logging.From(ctx).Warn("failed to send training notification", "error", err)
	}
}

// GetRun returns a training run record
func (uc *TrainingUseCase) GetRun(ctx context.Context, id model.ModelUpdateID) (*model.ModelUpdate, error) {
	run, err := uc.repo.ModelUpdate().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get training run", goerr.V("id", id))
	}
	return run, nil
}

// LatestRun returns the most recent run regardless of status
func (uc *TrainingUseCase) LatestRun(ctx context.Context) (*model.ModelUpdate, error) {
	run, err := uc.repo.ModelUpdate().GetLatest(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get latest training run")
	}
	return run, nil
}

// ListRuns returns the training history, newest first
func (uc *TrainingUseCase) ListRuns(ctx context.Context, limit int) ([]*model.ModelUpdate, error) {
	runs, err := uc.repo.ModelUpdate().List(ctx, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list training runs")
	}
	return runs, nil
}
