package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/service/archive"
	"github.com/secmon-lab/wishwell/pkg/service/embedding"
	"github.com/secmon-lab/wishwell/pkg/service/labeling"
	"github.com/secmon-lab/wishwell/pkg/service/moderation"
	"github.com/secmon-lab/wishwell/pkg/service/normalizer"
	"github.com/secmon-lab/wishwell/pkg/usecase"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// pipelineConfig groups the flags every command that builds use cases needs
type pipelineConfig struct {
	repo      config.Repository
	gemini    config.Gemini
	embedding config.Embedding
	training  config.Training
	slack     config.Slack
	storage   config.Storage

	skipLanguageDetection bool
}

func (x *pipelineConfig) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "skip-language-detection",
			Usage:       "Treat every wish as English when normalizing",
			Category:    "Training",
			Sources:     cli.EnvVars("WISHWELL_SKIP_LANGUAGE_DETECTION"),
			Destination: &x.skipLanguageDetection,
		},
	}
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.gemini.Flags()...)
	flags = append(flags, x.embedding.Flags()...)
	flags = append(flags, x.training.Flags()...)
	flags = append(flags, x.slack.Flags()...)
	flags = append(flags, x.storage.Flags()...)
	return flags
}

// pipeline owns the resources behind the use cases
type pipeline struct {
	repo     interfaces.Repository
	embedder *embedding.Model
	archiver *archive.Archiver
	uc       *usecase.UseCases
}

func (p *pipeline) Close() {
	logger := logging.Default()
	if p.embedder != nil {
		if err := p.embedder.Close(); err != nil {
			logger.Error("failed to close embedding model", "error", err.Error())
		}
	}
	if p.archiver != nil {
		if err := p.archiver.Close(); err != nil {
			logger.Error("failed to close archiver", "error", err.Error())
		}
	}
	if p.repo != nil {
		if err := p.repo.Close(); err != nil {
			logger.Error("failed to close repository", "error", err.Error())
		}
	}
}

// build wires repository, pipeline services and use cases. The embedding
// model is loaded here so a broken backend fails at startup.
func (x *pipelineConfig) build(ctx context.Context, c *cli.Command, opts ...usecase.Option) (*pipeline, error) {
	p := &pipeline{}
	built := false
	defer func() {
		if !built {
			p.Close()
		}
	}()

	trainingCfg, err := x.training.Configure(c)
	if err != nil {
		return nil, err
	}

	p.repo, err = x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	var normOpts []normalizer.Option
	if x.skipLanguageDetection {
		normOpts = append(normOpts, normalizer.WithoutLanguageDetection())
	}
	norm, err := normalizer.New(normOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create normalizer")
	}

	llmClient, err := x.gemini.Configure(ctx)
	if err != nil {
		return nil, err
	}

	p.embedder, err = x.embedding.Configure(llmClient)
	if err != nil {
		return nil, err
	}
	if err := p.embedder.Load(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to load embedding model")
	}

	trainingOpts := []usecase.TrainingOption{usecase.WithTrainingConfig(trainingCfg)}
	ucOpts := append([]usecase.Option{}, opts...)

	if llmClient != nil {
		labeler, err := labeling.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create labeler")
		}
		trainingOpts = append(trainingOpts, usecase.WithLabeler(labeler))

		moderator, err := moderation.New(llmClient, moderation.WithModelName(x.gemini.ModelName()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create moderator")
		}
		ucOpts = append(ucOpts, usecase.WithModerator(moderator))
		logging.Default().Info("LLM labeling and moderation enabled")
	} else {
		logging.Default().Info("Gemini not configured, topics use term based names and moderation is disabled")
	}

	notifier, err := x.slack.Configure()
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		trainingOpts = append(trainingOpts, usecase.WithNotifier(notifier))
	}

	p.archiver, err = x.storage.Configure(ctx)
	if err != nil {
		return nil, err
	}
	if p.archiver != nil {
		trainingOpts = append(trainingOpts, usecase.WithArchiver(p.archiver))
	}

	ucOpts = append(ucOpts, usecase.WithTraining(trainingOpts...))
	p.uc = usecase.New(p.repo, norm, p.embedder, ucOpts...)

	built = true
	logging.Default().Info("Pipeline configured",
		"repository", x.repo,
		"gemini", x.gemini,
		"embedding", x.embedding,
		"training", x.training,
		"slack", x.slack,
		"storage", x.storage,
	)
	return p, nil
}
