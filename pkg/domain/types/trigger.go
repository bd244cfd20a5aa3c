package types

import "fmt"

// TriggerKind tells what started a training run
type TriggerKind string

const (
	TriggerSchedule TriggerKind = "schedule"
	TriggerManual   TriggerKind = "manual"
	TriggerCLI      TriggerKind = "cli"
)

func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerSchedule, TriggerManual, TriggerCLI:
		return true
	default:
		return false
	}
}

func (k TriggerKind) String() string {
	return string(k)
}

// ParseTriggerKind parses a string into a TriggerKind
func ParseTriggerKind(s string) (TriggerKind, error) {
	kind := TriggerKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid trigger kind: %s", s)
	}
	return kind, nil
}
