package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateProjection(t *testing.T) {
	tests := []struct {
		state    State
		name     string
		status   string
		terminal bool
	}{
		{StateIdle, "idle", "idle", false},
		{StateExporting, "exporting", "running", false},
		{StatePending, "pending", "running", false},
		{StateStreaming, "streaming", "running", false},
		{StateCompleted, "completed", "idle", true},
		{StateCancelled, "cancelled", "idle", true},
		{StateFailed, "failed", "idle", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.status, tt.state.Status())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
			assert.Equal(t, tt.status == "running", tt.state.Active())
		})
	}
	assert.Equal(t, "unknown", State(42).String())
}
