package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKind(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Kind
	}{
		{"server error", `{"error":true,"message":"boom","error_code":401}`, KindServerError},
		{"server error string", `{"error":"bad","message":"boom"}`, KindServerError},
		{"error false is payload", `{"error":false,"content":"x"}`, KindPayload},
		{"observation error", `{"observation":"error","message":"oops","extras":{"error_id":"E1"}}`, KindObservationError},
		{"state change", `{"observation":"agent_state_changed","extras":{"agent_state":"running"}}`, KindStateChange},
		{"token", `{"token":"t-123"}`, KindToken},
		{"plain", `{"action":"message","args":{"content":"hi"}}`, KindPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMessage([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Kind())
		})
	}
}

func TestMessageAccessors(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"observation":"error","message":"oops","extras":{"error_id":"E1","agent_state":"init"}}`))
	require.NoError(t, err)

	id, ok := m.ErrorID()
	assert.True(t, ok)
	assert.Equal(t, "E1", id)
	assert.True(t, m.IsAgentInit())
	assert.Equal(t, "oops", m.Text())

	_, ok = m.Token()
	assert.False(t, ok)

	tok, err := DecodeMessage([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	v, ok := tok.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	empty, err := DecodeMessage([]byte(`{"token":""}`))
	require.NoError(t, err)
	_, ok = empty.Token()
	assert.False(t, ok)
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "hi", Message{"args": map[string]any{"content": "hi"}}.Text())
	assert.Equal(t, "raw", Message{"content": "raw"}.Text())
	assert.Equal(t, "", Message{"observation": "run"}.Text())
}

func TestSessionExpired(t *testing.T) {
	assert.True(t, Message{"error": true, "message": "expired", "error_code": float64(401)}.IsSessionExpired())
	assert.False(t, Message{"error": true, "message": "boom", "error_code": float64(500)}.IsSessionExpired())
	assert.False(t, Message{"error": true, "message": "boom"}.IsSessionExpired())
	assert.False(t, Message{"error_code": float64(401)}.IsSessionExpired())
}

func TestDecodeMessageRejectsNonObjects(t *testing.T) {
	for _, frame := range []string{`[]`, `"text"`, `42`, `null`, `{`} {
		_, err := DecodeMessage([]byte(frame))
		assert.ErrorIs(t, err, ErrInvalidPayload, frame)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "STOPPED", StatusStopped.String())
	assert.Equal(t, "STARTING", StatusStarting.String())
	assert.Equal(t, "STARTED", StatusStarted.String())
	assert.Equal(t, "UNKNOWN", Status(9).String())
}
