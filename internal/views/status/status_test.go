package status

import (
	"strings"
	"testing"

	"github.com/agent-racer/workspace/internal/channel"
)

func TestViewStatus(t *testing.T) {
	tests := []struct {
		status channel.Status
		want   string
	}{
		{channel.StatusStopped, "○ STOPPED"},
		{channel.StatusStarting, "◎ STARTING"},
		{channel.StatusStarted, "● STARTED"},
	}
	for _, tt := range tests {
		m := New()
		m.Status = tt.status
		if v := m.View(); !strings.Contains(v, tt.want) {
			t.Errorf("View() for %s missing %q:\n%s", tt.status, tt.want, v)
		}
	}
}

func TestViewDetails(t *testing.T) {
	m := New()
	m.Width = 100
	m.Status = channel.StatusStarted
	m.Messages = 3
	m.AgentState = "running"
	m.Alert = "session expired"

	v := m.View()
	for _, want := range []string{"3 messages", "agent: running", "session expired"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewOmitsEmptyFields(t *testing.T) {
	v := New().View()
	if strings.Contains(v, "agent:") {
		t.Error("no agent state should be shown before the first state change")
	}
}
