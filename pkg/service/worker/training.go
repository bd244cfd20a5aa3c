package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

// Trainer launches a training run in the background
type Trainer interface {
	Start(ctx context.Context, trigger types.TriggerKind) (<-chan struct{}, error)
}

// TrainingWorker triggers training on a schedule. A tick arriving while a
// run is in progress is skipped, never queued.
type TrainingWorker struct {
	trainer    Trainer
	schedule   string
	runOnStart bool

	cron    *cron.Cron
	mu      sync.Mutex
	current <-chan struct{}
}

type Option func(*TrainingWorker)

// WithRunOnStart triggers one run as soon as the worker starts
func WithRunOnStart() Option {
	return func(w *TrainingWorker) {
		w.runOnStart = true
	}
}

// IntervalSchedule converts an interval into a schedule spec
func IntervalSchedule(d time.Duration) string {
	return "@every " + d.String()
}

// NewTrainingWorker creates a worker. schedule is a standard 5-field cron
// expression or a descriptor such as "@hourly" or "@every 1h".
func NewTrainingWorker(trainer Trainer, schedule string, opts ...Option) *TrainingWorker {
	w := &TrainingWorker{
		trainer:  trainer,
		schedule: schedule,
		cron:     cron.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the schedule and returns without blocking
func (w *TrainingWorker) Start(ctx context.Context) error {
	sched, err := cron.ParseStandard(w.schedule)
	if err != nil {
		return goerr.Wrap(err, "invalid training schedule", goerr.V("schedule", w.schedule))
	}

	w.cron.Schedule(sched, cron.FuncJob(func() {
		w.trigger(ctx)
	}))
	w.cron.Start()

	logging.Default().Info("Training worker started",
		"schedule", w.schedule,
		"next", sched.Next(time.Now()))

	if w.runOnStart {
		w.trigger(ctx)
	}
	return nil
}

// Stop halts the schedule and waits for a triggered run to finish or ctx
// to expire. Cancelling the run itself is the trainer's job.
func (w *TrainingWorker) Stop(ctx context.Context) error {
	logging.Default().Info("Training worker stopping")
	<-w.cron.Stop().Done()

	w.mu.Lock()
	current := w.current
	w.mu.Unlock()
	if current != nil {
		select {
		case <-current:
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "scheduled training run still in progress")
		}
	}
	logging.Default().Info("Training worker stopped")
	return nil
}

func (w *TrainingWorker) trigger(ctx context.Context) {
	done, err := w.trainer.Start(ctx, types.TriggerSchedule)
	if errors.Is(err, model.ErrConcurrentRunRejected) {
		logging.From(ctx).Info("Scheduled training skipped, run in progress")
		return
	}
	if err != nil {
		errutil.Handle(ctx, err, "failed to start scheduled training")
		return
	}

	w.mu.Lock()
	w.current = done
	w.mu.Unlock()
}
