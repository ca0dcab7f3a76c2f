package channel

import (
	"encoding/json"
	"fmt"
)

// Recognised field values.
const (
	AgentStateInit        = "init"
	ObservationError      = "error"
	ActionMessage         = "message"
	DefaultInitAction     = "initialize"
	DefaultSubprotocol    = "openhands"
	NoSessionToken        = "NO_JWT"
	NoGitHubToken         = "NO_GITHUB"
	ErrorCodeUnauthorized = 401
)

// Kind classifies an inbound message by the fields it carries.
type Kind int

const (
	KindPayload Kind = iota
	KindServerError
	KindObservationError
	KindStateChange
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindServerError:
		return "server_error"
	case KindObservationError:
		return "observation_error"
	case KindStateChange:
		return "state_change"
	case KindToken:
		return "token"
	default:
		return "payload"
	}
}

// Message is one structured payload exchanged with the agent session.
type Message map[string]any

// Action is an outbound command. Args is usually a map of settings or
// action arguments.
type Action struct {
	Action string `json:"action"`
	Args   any    `json:"args"`
}

// DecodeMessage parses a frame. Anything other than a JSON object is
// rejected.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}
	return m, nil
}

// encodePayload serializes payload and returns the wire bytes together with
// the Message form stored in the log.
func encodePayload(payload any) ([]byte, Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	m, err := DecodeMessage(data)
	if err != nil {
		return nil, nil, err
	}
	return data, m, nil
}

// Kind reports which recognised shape m has.
func (m Message) Kind() Kind {
	switch {
	case m.isServerError():
		return KindServerError
	case m.str("observation") == ObservationError:
		return KindObservationError
	case m.has("token"):
		return KindToken
	default:
		if _, ok := m.AgentState(); ok {
			return KindStateChange
		}
		return KindPayload
	}
}

func (m Message) isServerError() bool {
	v, ok := m["error"]
	if !ok {
		return false
	}
	switch e := v.(type) {
	case bool:
		return e
	case nil:
		return false
	default:
		return true
	}
}

func (m Message) has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m Message) str(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m Message) extras() map[string]any {
	e, _ := m["extras"].(map[string]any)
	return e
}

// AgentState returns extras.agent_state.
func (m Message) AgentState() (string, bool) {
	s, ok := m.extras()["agent_state"].(string)
	return s, ok
}

// IsAgentInit reports whether m carries the "session finished initializing"
// marker.
func (m Message) IsAgentInit() bool {
	s, ok := m.AgentState()
	return ok && s == AgentStateInit
}

// Token returns the issued session token.
func (m Message) Token() (string, bool) {
	s, ok := m["token"].(string)
	return s, ok && s != ""
}

// ErrorCode returns error_code of a server error. JSON numbers decode as
// float64.
func (m Message) ErrorCode() (int, bool) {
	switch v := m["error_code"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// ErrorID returns extras.error_id of an observation error.
func (m Message) ErrorID() (string, bool) {
	s, ok := m.extras()["error_id"].(string)
	return s, ok
}

// Text returns the human readable part: message, or args.content for
// message actions.
func (m Message) Text() string {
	if s := m.str("message"); s != "" {
		return s
	}
	if args, ok := m["args"].(map[string]any); ok {
		if s, ok := args["content"].(string); ok {
			return s
		}
	}
	if s := m.str("content"); s != "" {
		return s
	}
	return ""
}

// IsSessionExpired reports a server error carrying the unauthorized code.
func (m Message) IsSessionExpired() bool {
	code, ok := m.ErrorCode()
	return m.Kind() == KindServerError && ok && code == ErrorCodeUnauthorized
}

// String renders m as compact JSON.
func (m Message) String() string {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(m))
	}
	return string(data)
}
