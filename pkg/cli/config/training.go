package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Training holds training run parameters. Values are resolved in order:
// defaults, the TOML file given by --training-config, explicitly set flags.
type Training struct {
	path            string
	scope           string
	components      int
	minClusterSize  int
	minSamples      int
	minTrainingSize int
	topTerms        int
	sampleSize      int
	seed            int64
	dropDegenerate  bool
	labelTimeout    time.Duration
	staleRunTimeout time.Duration
}

// trainingFile is the TOML layout of a training configuration file
type trainingFile struct {
	Scope           *string `toml:"scope"`
	Components      *int    `toml:"components"`
	MinClusterSize  *int    `toml:"min_cluster_size"`
	MinSamples      *int    `toml:"min_samples"`
	MinTrainingSize *int    `toml:"min_training_size"`
	TopTerms        *int    `toml:"top_terms"`
	SampleSize      *int    `toml:"sample_size"`
	Seed            *int64  `toml:"seed"`
	DropDegenerate  *bool   `toml:"drop_degenerate"`
	LabelTimeout    *string `toml:"label_timeout"`
	StaleRunTimeout *string `toml:"stale_run_timeout"`
}

func (x *Training) Flags() []cli.Flag {
	def := model.DefaultTrainingConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "training-config",
			Usage:       "Path to TOML file with training parameters",
			Category:    "Training",
			Sources:     cli.EnvVars("WISHWELL_TRAINING_CONFIG"),
			Destination: &x.path,
		},
		&cli.StringFlag{
			Name:        "training-scope",
			Usage:       "Wishes considered by a run [backlog|full]",
			Category:    "Training",
			Value:       def.Scope.String(),
			Sources:     cli.EnvVars("WISHWELL_TRAINING_SCOPE"),
			Destination: &x.scope,
		},
		&cli.IntFlag{
			Name:        "training-components",
			Usage:       "Dimensions kept by the reducer before clustering",
			Category:    "Training",
			Value:       def.Components,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_COMPONENTS"),
			Destination: &x.components,
		},
		&cli.IntFlag{
			Name:        "training-min-cluster-size",
			Usage:       "Smallest group of wishes that forms a topic",
			Category:    "Training",
			Value:       def.MinClusterSize,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_MIN_CLUSTER_SIZE"),
			Destination: &x.minClusterSize,
		},
		&cli.IntFlag{
			Name:        "training-min-samples",
			Usage:       "HDBSCAN core distance neighbourhood (0 uses min cluster size)",
			Category:    "Training",
			Sources:     cli.EnvVars("WISHWELL_TRAINING_MIN_SAMPLES"),
			Destination: &x.minSamples,
		},
		&cli.IntFlag{
			Name:        "training-min-size",
			Usage:       "Minimum number of candidate wishes to start a run",
			Category:    "Training",
			Value:       def.MinTrainingSize,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_MIN_SIZE"),
			Destination: &x.minTrainingSize,
		},
		&cli.IntFlag{
			Name:        "training-top-terms",
			Usage:       "Representative terms kept per topic",
			Category:    "Training",
			Value:       def.TopTerms,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_TOP_TERMS"),
			Destination: &x.topTerms,
		},
		&cli.IntFlag{
			Name:        "training-sample-size",
			Usage:       "Sample wishes passed to the labeler per topic",
			Category:    "Training",
			Value:       def.SampleSize,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_SAMPLE_SIZE"),
			Destination: &x.sampleSize,
		},
		&cli.Int64Flag{
			Name:        "training-seed",
			Usage:       "Fixed random seed for reproducible runs",
			Category:    "Training",
			Sources:     cli.EnvVars("WISHWELL_TRAINING_SEED"),
			Destination: &x.seed,
		},
		&cli.BoolFlag{
			Name:        "training-drop-degenerate",
			Usage:       "Exclude wishes that normalize to nothing",
			Category:    "Training",
			Sources:     cli.EnvVars("WISHWELL_TRAINING_DROP_DEGENERATE"),
			Destination: &x.dropDegenerate,
		},
		&cli.DurationFlag{
			Name:        "training-label-timeout",
			Usage:       "Timeout of one labeling call",
			Category:    "Training",
			Value:       def.LabelTimeout,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_LABEL_TIMEOUT"),
			Destination: &x.labelTimeout,
		},
		&cli.DurationFlag{
			Name:        "training-stale-timeout",
			Usage:       "Heartbeat age after which a running run is taken over",
			Category:    "Training",
			Value:       def.StaleRunTimeout,
			Sources:     cli.EnvVars("WISHWELL_TRAINING_STALE_TIMEOUT"),
			Destination: &x.staleRunTimeout,
		},
	}
}

func (x Training) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("config", x.path),
		slog.String("scope", x.scope),
		slog.Int("components", x.components),
		slog.Int("min_cluster_size", x.minClusterSize),
		slog.Int("min_training_size", x.minTrainingSize),
	)
}

// LoadTrainingFile reads a TOML training configuration on top of base
func LoadTrainingFile(path string, base model.TrainingConfig) (model.TrainingConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, goerr.Wrap(ErrConfigNotFound, "training config not found", goerr.V("path", path))
	}
	if err != nil {
		return base, goerr.Wrap(err, "failed to read training config", goerr.V("path", path))
	}

	var f trainingFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return base, goerr.Wrap(err, "failed to parse TOML training config", goerr.V("path", path))
	}

	cfg := base
	if f.Scope != nil {
		scope, err := types.ParseTrainingScope(*f.Scope)
		if err != nil {
			return base, goerr.Wrap(ErrInvalidConfig, "invalid scope", goerr.V("path", path), goerr.V("scope", *f.Scope))
		}
		cfg.Scope = scope
	}
	setIf(&cfg.Components, f.Components)
	setIf(&cfg.MinClusterSize, f.MinClusterSize)
	setIf(&cfg.MinSamples, f.MinSamples)
	setIf(&cfg.MinTrainingSize, f.MinTrainingSize)
	setIf(&cfg.TopTerms, f.TopTerms)
	setIf(&cfg.SampleSize, f.SampleSize)
	setIf(&cfg.DropDegenerate, f.DropDegenerate)
	if f.Seed != nil {
		seed := *f.Seed
		cfg.Seed = &seed
	}
	if f.LabelTimeout != nil {
		d, err := time.ParseDuration(*f.LabelTimeout)
		if err != nil {
			return base, goerr.Wrap(ErrInvalidConfig, "invalid label_timeout", goerr.V("path", path), goerr.V("value", *f.LabelTimeout))
		}
		cfg.LabelTimeout = d
	}
	if f.StaleRunTimeout != nil {
		d, err := time.ParseDuration(*f.StaleRunTimeout)
		if err != nil {
			return base, goerr.Wrap(ErrInvalidConfig, "invalid stale_run_timeout", goerr.V("path", path), goerr.V("value", *f.StaleRunTimeout))
		}
		cfg.StaleRunTimeout = d
	}

	return cfg, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Configure resolves the training configuration and validates it
func (x *Training) Configure(c *cli.Command) (model.TrainingConfig, error) {
	cfg := model.DefaultTrainingConfig()

	if x.path != "" {
		loaded, err := LoadTrainingFile(x.path, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	// flags left at their defaults do not override the file
	if c.IsSet("training-scope") {
		scope, err := types.ParseTrainingScope(x.scope)
		if err != nil {
			return cfg, goerr.Wrap(ErrInvalidConfig, "invalid training scope", goerr.V("scope", x.scope))
		}
		cfg.Scope = scope
	}
	if c.IsSet("training-components") {
		cfg.Components = x.components
	}
	if c.IsSet("training-min-cluster-size") {
		cfg.MinClusterSize = x.minClusterSize
		if !c.IsSet("training-min-size") && cfg.MinTrainingSize < cfg.MinClusterSize {
			cfg.MinTrainingSize = cfg.MinClusterSize
		}
	}
	if c.IsSet("training-min-samples") {
		cfg.MinSamples = x.minSamples
	}
	if c.IsSet("training-min-size") {
		cfg.MinTrainingSize = x.minTrainingSize
	}
	if c.IsSet("training-top-terms") {
		cfg.TopTerms = x.topTerms
	}
	if c.IsSet("training-sample-size") {
		cfg.SampleSize = x.sampleSize
	}
	if c.IsSet("training-seed") {
		seed := x.seed
		cfg.Seed = &seed
	}
	if c.IsSet("training-drop-degenerate") {
		cfg.DropDegenerate = x.dropDegenerate
	}
	if c.IsSet("training-label-timeout") {
		cfg.LabelTimeout = x.labelTimeout
	}
	if c.IsSet("training-stale-timeout") {
		cfg.StaleRunTimeout = x.staleRunTimeout
	}

	if err := cfg.Validate(); err != nil {
		return cfg, goerr.Wrap(err, "invalid training configuration")
	}
	return cfg, nil
}
