package types

import "fmt"

// TrainingScope selects which wishes become candidates of a training run.
//
//   - backlog: non-deleted wishes without a topic or whose topic is no longer active
//   - full: every non-deleted wish
type TrainingScope string

const (
	TrainingScopeBacklog TrainingScope = "backlog"
	TrainingScopeFull    TrainingScope = "full"
)

// IsValid checks if the scope is valid
func (s TrainingScope) IsValid() bool {
	switch s {
	case TrainingScopeBacklog, TrainingScopeFull:
		return true
	default:
		return false
	}
}

// Normalize treats empty as TrainingScopeBacklog
func (s TrainingScope) Normalize() TrainingScope {
	if s == "" {
		return TrainingScopeBacklog
	}
	return s
}

func (s TrainingScope) String() string {
	return string(s)
}

// ParseTrainingScope parses a string into a TrainingScope
func ParseTrainingScope(s string) (TrainingScope, error) {
	scope := TrainingScope(s).Normalize()
	if !scope.IsValid() {
		return "", fmt.Errorf("invalid training scope: %s", s)
	}
	return scope, nil
}
