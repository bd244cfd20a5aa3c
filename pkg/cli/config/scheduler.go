package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/wishwell/pkg/service/worker"
	"github.com/urfave/cli/v3"
)

// Scheduler configures the background training trigger of the serve command
type Scheduler struct {
	enabled    bool
	interval   time.Duration
	cron       string
	runOnStart bool
}

func (x *Scheduler) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "scheduler-enabled",
			Usage:       "Run training periodically",
			Category:    "Scheduler",
			Value:       true,
			Sources:     cli.EnvVars("WISHWELL_SCHEDULER_ENABLED"),
			Destination: &x.enabled,
		},
		&cli.DurationFlag{
			Name:        "scheduler-interval",
			Usage:       "Interval between scheduled training runs",
			Category:    "Scheduler",
			Value:       60 * time.Minute,
			Sources:     cli.EnvVars("WISHWELL_SCHEDULER_INTERVAL"),
			Destination: &x.interval,
		},
		&cli.StringFlag{
			Name:        "scheduler-cron",
			Usage:       "Cron expression for training runs, overrides --scheduler-interval",
			Category:    "Scheduler",
			Sources:     cli.EnvVars("WISHWELL_SCHEDULER_CRON"),
			Destination: &x.cron,
		},
		&cli.BoolFlag{
			Name:        "scheduler-run-on-start",
			Usage:       "Trigger a training run when the server starts",
			Category:    "Scheduler",
			Sources:     cli.EnvVars("WISHWELL_SCHEDULER_RUN_ON_START"),
			Destination: &x.runOnStart,
		},
	}
}

func (x Scheduler) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", x.enabled),
		slog.String("schedule", x.Schedule()),
		slog.Bool("run_on_start", x.runOnStart),
	)
}

func (x *Scheduler) Enabled() bool {
	return x.enabled
}

// Schedule returns the cron spec of the trigger
func (x *Scheduler) Schedule() string {
	if x.cron != "" {
		return x.cron
	}
	return worker.IntervalSchedule(x.interval)
}

// Configure returns the training worker, or nil when the scheduler is disabled
func (x *Scheduler) Configure(trainer worker.Trainer) *worker.TrainingWorker {
	if !x.enabled {
		return nil
	}
	var opts []worker.Option
	if x.runOnStart {
		opts = append(opts, worker.WithRunOnStart())
	}
	return worker.NewTrainingWorker(trainer, x.Schedule(), opts...)
}
