package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by repositories, services and use cases
var (
	ErrNotFound = goerr.New("not found")

	// Pipeline errors
	ErrInsufficientData    = goerr.New("insufficient data for training")
	ErrEmbedding           = goerr.New("embedding generation failed")
	ErrLabelingUnavailable = goerr.New("labeling unavailable")
	ErrNormalization       = goerr.New("text normalization failed")
	ErrDegenerateInput     = goerr.New("degenerate input after normalization")

	// Orchestration errors
	ErrConcurrentRunRejected = goerr.New("another training run is in progress")
	ErrRunInProgress         = goerr.New("training run lease is held")
	ErrRunNotRunning         = goerr.New("training run is not running")

	ErrInvalidTrainingConfig = goerr.New("invalid training configuration")
)
