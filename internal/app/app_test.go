package app

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeSession struct {
	mu      sync.Mutex
	status  channel.Status
	starts  []channel.Credentials
	stops   int
	sent    []any
	sendErr error
	entries []channel.Entry
}

func (f *fakeSession) Start(creds channel.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, creds)
	f.status = channel.StatusStarting
}

func (f *fakeSession) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSession) Send(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeSession) Status() channel.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) Entries() []channel.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Entry(nil), f.entries...)
}

func newTestModel(s Session) Model {
	m := New(s, Options{
		Credentials:   func() channel.Credentials { return channel.Credentials{SessionToken: "tok"} },
		MarkdownStyle: "notty",
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func TestToggleStartsWhenStopped(t *testing.T) {
	s := &fakeSession{}
	m := newTestModel(s)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("expected a start command")
	}
	cmd()
	if len(s.starts) != 1 || s.starts[0].SessionToken != "tok" {
		t.Errorf("expected one start with stored credentials, got %+v", s.starts)
	}
}

func TestToggleStopsWhenRunning(t *testing.T) {
	s := &fakeSession{status: channel.StatusStarted}
	m := newTestModel(s)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	cmd()
	if s.stops != 1 {
		t.Errorf("expected one stop, got %d", s.stops)
	}
	if len(s.starts) != 0 {
		t.Error("toggle on a running session should not start")
	}
}

func TestReconnectAlwaysStarts(t *testing.T) {
	s := &fakeSession{status: channel.StatusStarted}
	m := newTestModel(s)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	cmd()
	if len(s.starts) != 1 {
		t.Errorf("expected reconnect to start, got %d starts", len(s.starts))
	}
}

func TestEnterSendsMessageAction(t *testing.T) {
	s := &fakeSession{status: channel.StatusStarted}
	m := newTestModel(s)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("run the tests")})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a send command")
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after send")
	}
	if _, ok := cmd().(sentMsg); !ok {
		t.Error("successful send should report sentMsg")
	}

	if len(s.sent) != 1 {
		t.Fatalf("expected one payload, got %d", len(s.sent))
	}
	a, ok := s.sent[0].(channel.Action)
	if !ok || a.Action != channel.ActionMessage {
		t.Fatalf("unexpected payload %#v", s.sent[0])
	}
	if args := a.Args.(map[string]any); args["content"] != "run the tests" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	s := &fakeSession{}
	m := newTestModel(s)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not send")
	}
}

func TestSendFailureRaisesAlert(t *testing.T) {
	s := &fakeSession{sendErr: channel.ErrNotConnected}
	m := newTestModel(s)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	next, _ := m.Update(cmd())
	m = next.(Model)
	if m.statusBar.Alert != channel.ErrNotConnected.Error() {
		t.Errorf("expected alert %q, got %q", channel.ErrNotConnected.Error(), m.statusBar.Alert)
	}
}

func TestStatusAndMessagesUpdateStatusBar(t *testing.T) {
	s := &fakeSession{}
	m := newTestModel(s)

	next, _ := m.Update(StatusMsg{Status: channel.StatusStarting})
	m = next.(Model)

	ready := channel.Message{"observation": "agent_state_changed", "extras": map[string]any{"agent_state": "init"}}
	s.entries = []channel.Entry{{Direction: channel.Inbound, Message: ready}}
	next, _ = m.Update(MessageMsg{Message: ready})
	m = next.(Model)
	next, _ = m.Update(StatusMsg{Status: channel.StatusStarted})
	m = next.(Model)

	if m.statusBar.Status != channel.StatusStarted {
		t.Errorf("expected STARTED, got %s", m.statusBar.Status)
	}
	if m.statusBar.AgentState != "init" {
		t.Errorf("expected agent state init, got %q", m.statusBar.AgentState)
	}
	if m.statusBar.Messages != 1 {
		t.Errorf("expected 1 message, got %d", m.statusBar.Messages)
	}
	if !strings.Contains(m.View(), "STARTED") {
		t.Error("view should show the status")
	}
}

func TestSessionExpiredAlert(t *testing.T) {
	s := &fakeSession{}
	m := newTestModel(s)
	next, _ := m.Update(MessageMsg{Message: channel.Message{"error": true, "error_code": float64(401), "message": "expired"}})
	m = next.(Model)
	if !strings.Contains(m.statusBar.Alert, "session expired") {
		t.Errorf("expected session expired alert, got %q", m.statusBar.Alert)
	}

	// A new start clears the alert.
	next, _ = m.Update(StatusMsg{Status: channel.StatusStarting})
	m = next.(Model)
	if m.statusBar.Alert != "" {
		t.Error("starting should clear the alert")
	}
}

func TestLogOverlay(t *testing.T) {
	s := &fakeSession{entries: []channel.Entry{
		{Direction: channel.Outbound, Message: channel.Message{"action": "initialize"}},
	}}
	m := newTestModel(s)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	if m.overlay != OverlayLog {
		t.Fatal("ctrl+l should open the log overlay")
	}
	if !strings.Contains(m.View(), "MESSAGE LOG") {
		t.Error("overlay should render the log")
	}

	// Keys are swallowed by the overlay.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.input.Value() != "" {
		t.Error("typing under the overlay should not reach the input")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc should close the overlay")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(&fakeSession{})
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestViewBeforeSize(t *testing.T) {
	m := New(&fakeSession{}, Options{})
	if m.View() != "Initializing..." {
		t.Error("view before the first resize should be a placeholder")
	}
}

type nopSocket struct{}

func (nopSocket) Send([]byte) error { return nil }
func (nopSocket) Close() error { return nil }

type nopDialer struct{}

func (nopDialer) Dial(string, []string, transport.Handlers) transport.Socket {
	return nopSocket{}
}

func TestBindForwardsChannelEvents(t *testing.T) {
	ch := channel.New(channel.Config{BaseURL: "http://localhost:3000", Dialer: nopDialer{}})

	var mu sync.Mutex
	var got []tea.Msg
	unbind := Bind(ch, func(msg tea.Msg) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
	})

	ch.Start(channel.Credentials{})
	ch.Stop()

	mu.Lock()
	if len(got) < 1 {
		mu.Unlock()
		t.Fatal("expected forwarded status")
	}
	if sm, ok := got[0].(StatusMsg); !ok || sm.Status != channel.StatusStarting {
		t.Errorf("expected StatusMsg STARTING first, got %#v", got[0])
	}
	n := len(got)
	mu.Unlock()

	unbind()
	ch.Start(channel.Credentials{})
	mu.Lock()
	defer mu.Unlock()
	if len(got) != n {
		t.Error("unbound listeners should not receive events")
	}
}

func TestErrorMsgSetsAlert(t *testing.T) {
	m := newTestModel(&fakeSession{})
	next, _ := m.Update(ErrorMsg{Err: errors.New("connection refused")})
	m = next.(Model)
	if !strings.Contains(m.View(), "connection refused") {
		t.Error("view should show the error")
	}
}
