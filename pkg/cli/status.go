package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdStatus() *cli.Command {
	var repoCfg config.Repository
	var limit int

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Number of training runs to show",
			Value:       10,
			Destination: &limit,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "status",
		Usage: "Show wish counts and training history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() { _ = repo.Close() }()

			return printStatus(ctx, c.Root().Writer, repo, limit)
		},
	}
}

var (
	headerColor    = color.New(color.Bold)
	completedColor = color.New(color.FgGreen)
	failedColor    = color.New(color.FgRed)
	runningColor   = color.New(color.FgYellow)
)

func printStatus(ctx context.Context, w io.Writer, repo interfaces.Repository, limit int) error {
	wishes, err := repo.Wish().ListActive(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list wishes")
	}
	topics, err := repo.Topic().ListActive(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list topics")
	}
	runs, err := repo.ModelUpdate().List(ctx, limit)
	if err != nil {
		return goerr.Wrap(err, "failed to list training runs")
	}

	unassigned := 0
	for _, wish := range wishes {
		if !wish.HasTopic() {
			unassigned++
		}
	}

	_, _ = headerColor.Fprintln(w, "Wishes")
	_, _ = fmt.Fprintf(w, "  total: %d  unassigned: %d  active topics: %d\n\n", len(wishes), unassigned, len(topics))
	_, _ = headerColor.Fprintln(w, "Training runs")
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "  no training runs yet")
		return nil
	}
	return printRuns(w, runs)
}

func statusColor(status types.RunStatus) *color.Color {
	switch status {
	case types.RunStatusCompleted:
		return completedColor
	case types.RunStatusFailed:
		return failedColor
	default:
		return runningColor
	}
}

func printRuns(w io.Writer, runs []*model.ModelUpdate) error {
	for _, run := range runs {
		status := statusColor(run.Status).Sprintf("%-9s", run.Status)
		if _, err := fmt.Fprintf(w, "  v%-4d %s %-8s %s  wishes=%d topics=%d noise=%d superseded=%d duration=%s\n",
			run.Version,
			status,
			run.Trigger,
			run.StartedAt.Format(time.RFC3339),
			run.WishesCount,
			run.TopicsCreated,
			run.NoiseCount,
			run.SupersededCount,
			run.Duration().Round(time.Millisecond),
		); err != nil {
			return goerr.Wrap(err, "failed to write status")
		}
		if run.Error != "" {
			_, _ = failedColor.Fprintf(w, "         error: %s\n", run.Error)
		}
	}
	return nil
}
