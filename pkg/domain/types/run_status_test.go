package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

func TestRunStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status types.RunStatus
		want   bool
	}{
		{name: "running", status: types.RunStatusRunning, want: true},
		{name: "completed", status: types.RunStatusCompleted, want: true},
		{name: "failed", status: types.RunStatusFailed, want: true},
		{name: "idle is not a persisted status", status: types.RunStatus("idle"), want: false},
		{name: "empty", status: types.RunStatus(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.status.IsValid()).True()
			} else {
				gt.B(t, tt.status.IsValid()).False()
			}
		})
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	gt.B(t, types.RunStatusRunning.IsTerminal()).False()
	gt.B(t, types.RunStatusCompleted.IsTerminal()).True()
	gt.B(t, types.RunStatusFailed.IsTerminal()).True()
}

func TestParseRunStatus(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		status, err := types.ParseRunStatus("completed")
		gt.NoError(t, err)
		gt.Value(t, status).Equal(types.RunStatusCompleted)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := types.ParseRunStatus("COMPLETED")
		gt.Error(t, err)
	})
}

func TestAllRunStatuses(t *testing.T) {
	statuses := types.AllRunStatuses()
	gt.A(t, statuses).Length(3)
	for _, s := range statuses {
		gt.B(t, s.IsValid()).True()
	}
}
