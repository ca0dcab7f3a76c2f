package channel

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/agent-racer/workspace/internal/transport"
)

// fakeSocket records sent frames. Tests fire its handlers by hand, which
// gives deterministic callback order.
type fakeSocket struct {
	url       string
	protocols []string
	h         transport.Handlers

	mu      sync.Mutex
	open    bool
	closed  bool
	closes  int
	sent    [][]byte
	sendErr error
}

func (s *fakeSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	if !s.open || s.closed {
		return transport.ErrNotOpen
	}
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) fireOpen() {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	s.h.OnOpen()
}

func (s *fakeSocket) fireMessage(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s.h.OnMessage(data)
}

func (s *fakeSocket) fireRaw(data string) {
	s.h.OnMessage([]byte(data))
}

func (s *fakeSocket) fireError(err error) {
	s.h.OnError(err)
}

func (s *fakeSocket) fireClose() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.h.OnClose(transport.CloseNormal, "")
}

func (s *fakeSocket) closeRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeSocket) sentMessages(t *testing.T) []Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, data := range s.sent {
		m, err := DecodeMessage(data)
		if err != nil {
			t.Fatalf("sent frame is not an object: %v", err)
		}
		out = append(out, m)
	}
	return out
}

type fakeDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
}

func (d *fakeDialer) Dial(url string, protocols []string, h transport.Handlers) transport.Socket {
	s := &fakeSocket{url: url, protocols: protocols, h: h}
	d.mu.Lock()
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()
	return s
}

func (d *fakeDialer) last(t *testing.T) *fakeSocket {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		t.Fatal("no socket dialed")
	}
	return d.sockets[len(d.sockets)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) ReportError(err error, _ ...any) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func testSettings() map[string]any {
	return map[string]any{
		"LLM_MODEL": "gpt-4o",
		"AGENT":     "CodeActAgent",
		"LANGUAGE":  "en",
	}
}

func newTestChannel(t *testing.T) (*Channel, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	ch := New(Config{
		BaseURL:  "http://localhost:3000",
		Dialer:   d,
		Settings: SettingsFunc(testSettings),
	})
	return ch, d
}

// statusRecorder collects every status transition delivered to a listener.
type statusRecorder struct {
	mu   sync.Mutex
	seen []Status
}

func (r *statusRecorder) listener() *StatusListener {
	return NewListener(func(s Status) {
		r.mu.Lock()
		r.seen = append(r.seen, s)
		r.mu.Unlock()
	})
}

func (r *statusRecorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.seen...)
}
