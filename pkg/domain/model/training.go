package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

// Default training parameters
const (
	DefaultComponents      = 5
	DefaultMinClusterSize  = 10
	DefaultTopTerms        = 10
	DefaultSampleSize      = 5
	DefaultLabelTimeout    = 30 * time.Second
	DefaultStaleRunTimeout = 2 * time.Hour
)

// TrainingConfig holds the parameters of a training run. A snapshot is
// stored on every ModelUpdate.
type TrainingConfig struct {
	Scope           types.TrainingScope `json:"scope"`
	EmbeddingModel  string              `json:"embedding_model"`
	Components      int                 `json:"components"`
	MinClusterSize  int                 `json:"min_cluster_size"`
	MinSamples      int                 `json:"min_samples,omitempty"` // 0 means MinClusterSize
	MinTrainingSize int                 `json:"min_training_size"`
	TopTerms        int                 `json:"top_terms"`
	SampleSize      int                 `json:"sample_size"`
	Seed            *int64              `json:"seed,omitempty"`
	DropDegenerate  bool                `json:"drop_degenerate"`
	LabelTimeout    time.Duration       `json:"label_timeout"`
	StaleRunTimeout time.Duration       `json:"stale_run_timeout"`
}

// DefaultTrainingConfig returns the configuration used when nothing is specified
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Scope:           types.TrainingScopeBacklog,
		Components:      DefaultComponents,
		MinClusterSize:  DefaultMinClusterSize,
		MinTrainingSize: DefaultMinClusterSize,
		TopTerms:        DefaultTopTerms,
		SampleSize:      DefaultSampleSize,
		LabelTimeout:    DefaultLabelTimeout,
		StaleRunTimeout: DefaultStaleRunTimeout,
	}
}

// EffectiveMinSamples returns MinSamples, defaulting to MinClusterSize
func (c TrainingConfig) EffectiveMinSamples() int {
	if c.MinSamples > 0 {
		return c.MinSamples
	}
	return c.MinClusterSize
}

// Validate checks ranges of the parameters
func (c TrainingConfig) Validate() error {
	if !c.Scope.Normalize().IsValid() {
		return goerr.Wrap(ErrInvalidTrainingConfig, "invalid scope", goerr.V("scope", c.Scope))
	}
	if c.Components < 2 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "components must be at least 2", goerr.V("components", c.Components))
	}
	if c.MinClusterSize < 2 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "min cluster size must be at least 2", goerr.V("min_cluster_size", c.MinClusterSize))
	}
	if c.MinSamples < 0 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "min samples must not be negative", goerr.V("min_samples", c.MinSamples))
	}
	if c.MinTrainingSize < c.MinClusterSize {
		return goerr.Wrap(ErrInvalidTrainingConfig, "min training size must not be smaller than min cluster size",
			goerr.V("min_training_size", c.MinTrainingSize),
			goerr.V("min_cluster_size", c.MinClusterSize))
	}
	if c.TopTerms < 3 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "top terms must be at least 3", goerr.V("top_terms", c.TopTerms))
	}
	if c.SampleSize < 0 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "sample size must not be negative", goerr.V("sample_size", c.SampleSize))
	}
	if c.LabelTimeout <= 0 {
		return goerr.Wrap(ErrInvalidTrainingConfig, "label timeout must be positive", goerr.V("label_timeout", c.LabelTimeout))
	}
	return nil
}

// TrainingCommit is everything a completed run writes. Repositories apply it
// in a single transaction: either every row becomes visible or none does.
type TrainingCommit struct {
	// Run carries the completed status, completion time and counters
	Run *ModelUpdate

	Topics      []*Topic
	Assignments []*Assignment // new primary assignments

	// CarriedForward lists noise wishes whose existing primary assignment is kept
	CarriedForward []WishID

	// Superseded lists previously active topics replaced by this run
	Superseded []TopicID

	Projection []*ProjectionPoint
}
