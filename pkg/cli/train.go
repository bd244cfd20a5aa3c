package cli

import (
	"context"
	"errors"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdTrain() *cli.Command {
	var pipelineCfg pipelineConfig

	return &cli.Command{
		Name:    "train",
		Aliases: []string{"t"},
		Usage:   "Run one training run now and exit",
		Flags:   pipelineCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			p, err := pipelineCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer p.Close()

			run, err := p.uc.Training.Run(ctx, types.TriggerCLI)
			if errors.Is(err, model.ErrInsufficientData) {
				logging.Default().Warn("Not enough wishes to train", "error", err.Error())
				return nil
			}
			if err != nil {
				return err
			}

			logging.Default().Info("Training run completed",
				"id", run.ID,
				"version", run.Version,
				"wishes", run.WishesCount,
				"topics", run.TopicsCreated,
				"noise", run.NoiseCount,
				"superseded", run.SupersededCount,
				"duration", run.Duration(),
			)
			return printRuns(c.Root().Writer, []*model.ModelUpdate{run})
		},
	}
}
