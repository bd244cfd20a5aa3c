package types

import "fmt"

// RunStatus represents the lifecycle state of a training run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AllRunStatuses returns all valid run statuses
func AllRunStatuses() []RunStatus {
	return []RunStatus{
		RunStatusRunning,
		RunStatusCompleted,
		RunStatusFailed,
	}
}

// IsValid checks if the run status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning,
		RunStatusCompleted,
		RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed from the status
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

func (s RunStatus) String() string {
	return string(s)
}

// ParseRunStatus parses a string into a RunStatus
func ParseRunStatus(s string) (RunStatus, error) {
	status := RunStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid run status: %s", s)
	}
	return status, nil
}
