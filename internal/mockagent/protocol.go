// Package mockagent is a stand-in agent session backend. It speaks the same
// websocket subprotocol as the real server closely enough to drive the
// session channel end to end: it issues tokens, acknowledges the INIT
// handshake, echoes user messages and reports errors the way the backend
// does. Types mirror the wire format without importing client packages.
package mockagent

const (
	ActionMessage = "message"

	StateInit              = "init"
	StateAwaitingUserInput = "awaiting_user_input"

	ObservationStateChanged = "agent_state_changed"
	ObservationError        = "error"

	ErrorIDUnsupportedAction = "UNSUPPORTED_ACTION"

	noSessionToken = "NO_JWT"
)

// Frame is any JSON object on the wire.
type Frame map[string]any

// ServerError is the {error, message, error_code} shape.
type ServerError struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// TokenIssued hands a fresh session token to the client.
type TokenIssued struct {
	Token string `json:"token"`
}

// StateChange reports the agent state.
type StateChange struct {
	Observation string            `json:"observation"`
	Content     string            `json:"content"`
	Extras      map[string]string `json:"extras"`
}

func stateChange(state string) StateChange {
	return StateChange{
		Observation: ObservationStateChanged,
		Extras:      map[string]string{"agent_state": state},
	}
}

// ObservationErr is the {observation:"error", message, extras:{error_id}} shape.
type ObservationErr struct {
	Observation string            `json:"observation"`
	Message     string            `json:"message"`
	Extras      map[string]string `json:"extras"`
}

func observationError(id, message string) ObservationErr {
	return ObservationErr{
		Observation: ObservationError,
		Message:     message,
		Extras:      map[string]string{"error_id": id},
	}
}

// AgentMessage is what the agent says back.
type AgentMessage struct {
	Source string         `json:"source"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}
