package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

// ModelUpdateID is a UUID-based identifier for ModelUpdate
type ModelUpdateID string

// NewModelUpdateID generates a new UUID v4 ModelUpdateID
func NewModelUpdateID() ModelUpdateID {
	return ModelUpdateID(uuid.New().String())
}

func (id ModelUpdateID) String() string {
	return string(id)
}

// ModelUpdate is the record of one training run. It is created when the run
// starts, mutated only by the training orchestrator and never deleted.
type ModelUpdate struct {
	ID      ModelUpdateID
	Version int64 // monotonic, assigned by the repository on Begin
	Status  types.RunStatus
	Trigger types.TriggerKind

	WishesCount     int
	TopicsCreated   int
	NoiseCount      int
	DegenerateCount int
	SupersededCount int

	Configuration TrainingConfig
	Error         string

	StartedAt   time.Time
	HeartbeatAt time.Time
	CompletedAt *time.Time
}

// Duration returns elapsed time of a finished run, or zero while running
func (m *ModelUpdate) Duration() time.Duration {
	if m.CompletedAt == nil {
		return 0
	}
	return m.CompletedAt.Sub(m.StartedAt)
}

// IsStale reports whether a running record stopped heartbeating for longer than timeout
func (m *ModelUpdate) IsStale(now time.Time, timeout time.Duration) bool {
	if m.Status != types.RunStatusRunning || timeout <= 0 {
		return false
	}
	last := m.HeartbeatAt
	if last.IsZero() {
		last = m.StartedAt
	}
	return now.Sub(last) > timeout
}
