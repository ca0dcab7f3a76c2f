// Package channel owns the realtime connection to a backend agent session.
//
// A Channel holds at most one live socket handle. Start opens a fresh handle
// (requesting closure of any previous one), the INIT action is sent as soon
// as the socket opens, and every inbound frame is logged and fanned out to
// message listeners. Callbacks from a handle that is no longer current are
// ignored, so a stale socket can never touch the log, the status, or the
// listeners.
package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agent-racer/workspace/internal/transport"
)

var (
	// ErrNotConnected is returned by Send when no socket handle exists.
	ErrNotConnected = errors.New("no active connection")
	// ErrInvalidPayload marks frames or payloads that are not JSON objects.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Credentials authenticate a session. Empty tokens are replaced by sentinel
// values because the subprotocol list may not contain empty or duplicate
// entries.
type Credentials struct {
	SessionToken string
	GitHubToken  string
}

// SettingsProvider supplies the client-side settings snapshot sent as the
// INIT action's args.
type SettingsProvider interface {
	Snapshot() map[string]any
}

// SettingsFunc adapts a function to SettingsProvider.
type SettingsFunc func() map[string]any

func (f SettingsFunc) Snapshot() map[string]any { return f() }

// ErrorReporter is the telemetry sink for transport errors.
type ErrorReporter interface {
	ReportError(err error, attrs ...any)
}

type nopReporter struct{}

func (nopReporter) ReportError(error, ...any) {}

// Config configures a Channel. Dialer and BaseURL are required.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://app.example.com". Its
	// scheme decides between ws and wss.
	BaseURL string
	// Path is appended to BaseURL. Defaults to "/ws".
	Path string
	// Subprotocol is the fixed first entry of the subprotocol list.
	Subprotocol string
	// InitAction is the action identifier of the handshake.
	InitAction string

	Dialer   transport.Dialer
	Settings SettingsProvider
	Reporter ErrorReporter
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.Subprotocol == "" {
		c.Subprotocol = DefaultSubprotocol
	}
	if c.InitAction == "" {
		c.InitAction = DefaultInitAction
	}
	if c.Settings == nil {
		c.Settings = SettingsFunc(func() map[string]any { return map[string]any{} })
	}
	if c.Reporter == nil {
		c.Reporter = nopReporter{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// handle is the live connection created by one Start call. socket is nil
// until the dial has been issued.
type handle struct {
	id     string
	socket transport.Socket
}

// Channel is the realtime session channel.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *handle
	status  Status
	log     messageLog

	// epoch counts Start calls. Message and error events carry the epoch
	// they were produced in and are dropped once it has moved on.
	epoch    uint64
	queue    []event
	draining bool

	statusListeners  *registry[Status]
	messageListeners *registry[Message]
	errorListeners   *registry[error]
}

// New creates a stopped channel.
func New(cfg Config) *Channel {
	cfg.defaults()
	return &Channel{
		cfg:              cfg,
		logger:           cfg.Logger,
		statusListeners:  newRegistry[Status]("status", cfg.Logger),
		messageListeners: newRegistry[Message]("message", cfg.Logger),
		errorListeners:   newRegistry[error]("error", cfg.Logger),
	}
}

// Endpoint derives the socket URL from an http(s) or ws(s) base URL.
func Endpoint(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q: missing host", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Subprotocols builds the handshake subprotocol list for creds.
func Subprotocols(name string, creds Credentials) []string {
	session := creds.SessionToken
	if session == "" {
		session = NoSessionToken
	}
	github := creds.GitHubToken
	if github == "" {
		github = NoGitHubToken
	}
	return []string{name, session, github}
}

// Start opens a new connection. An existing handle is closed first and its
// late callbacks are ignored. A message or error from an earlier handle that
// has not reached a listener by the time Start swaps handles never will.
// Start returns before the socket opens. Its status events are delivered before it returns unless another
// goroutine is delivering events at that moment, in which case that
// goroutine delivers them in order.
func (c *Channel) Start(creds Credentials) {
	endpoint, err := Endpoint(c.cfg.BaseURL, c.cfg.Path)
	if err != nil {
		c.logger.Error("cannot start session channel", "error", err)
		c.cfg.Reporter.ReportError(err, "stage", "start")
		c.mu.Lock()
		c.emitErrorLocked(err)
		c.mu.Unlock()
		c.drain()
		return
	}

	h := &handle{id: uuid.NewString()}

	c.mu.Lock()
	old := c.current
	var oldSocket transport.Socket
	if old != nil {
		oldSocket = old.socket
		c.emitStatusLocked(StatusStopped)
	}
	c.current = h
	c.status = StatusStarting
	c.epoch++
	c.emitStatusLocked(StatusStarting)
	c.mu.Unlock()

	if old != nil {
		c.logger.Warn("overriding existing connection", "old", old.id, "new", h.id)
		if oldSocket != nil {
			oldSocket.Close()
		}
	}
	c.drain()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != h {
		// A status listener called Start or Stop again.
		return
	}
	c.logger.Info("opening session channel", "handle", h.id, "url", endpoint)
	h.socket = c.cfg.Dialer.Dial(endpoint, Subprotocols(c.cfg.Subprotocol, creds), c.handlers(h))
}

// Stop requests closure of the current handle. The close callback moves the
// channel to STOPPED.
func (c *Channel) Stop() {
	c.mu.Lock()
	h := c.current
	if h == nil {
		c.mu.Unlock()
		c.logger.Warn("stop called with no active connection")
		return
	}
	socket := h.socket
	if socket == nil {
		// Start has not dialed yet; there is no socket to wait for.
		c.current = nil
		c.status = StatusStopped
		c.emitStatusLocked(StatusStopped)
		c.mu.Unlock()
		c.drain()
		return
	}
	c.mu.Unlock()

	c.logger.Info("closing session channel", "handle", h.id)
	socket.Close()
}

// Send serializes payload and transmits it on the current handle. Without
// a handle the payload is dropped and ErrNotConnected returned.
func (c *Channel) Send(payload any) error {
	c.mu.Lock()
	h := c.current
	var socket transport.Socket
	if h != nil {
		socket = h.socket
	}
	c.mu.Unlock()

	if socket == nil {
		c.logger.Error("send dropped", "error", ErrNotConnected)
		return ErrNotConnected
	}

	data, msg, err := encodePayload(payload)
	if err != nil {
		c.logger.Error("send dropped", "error", err)
		return err
	}
	return c.transmit(h, socket, data, msg)
}

func (c *Channel) transmit(h *handle, socket transport.Socket, data []byte, msg Message) error {
	if err := socket.Send(data); err != nil {
		c.logger.Error("send failed", "handle", h.id, "error", err)
		return err
	}
	c.mu.Lock()
	if c.current == h {
		c.log.append(Outbound, msg)
	}
	c.mu.Unlock()
	return nil
}

// handlers binds the socket callbacks to h. Each one checks that h is still
// current before touching shared state.
func (c *Channel) handlers(h *handle) transport.Handlers {
	return transport.Handlers{
		OnOpen:    func() { c.handleOpen(h) },
		OnMessage: func(data []byte) { c.handleMessage(h, data) },
		OnError:   func(err error) { c.handleError(h, err) },
		OnClose:   func(code int, reason string) { c.handleClose(h, code, reason) },
	}
}

func (c *Channel) isCurrent(h *handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == h
}

func (c *Channel) handleOpen(h *handle) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	socket := h.socket
	c.mu.Unlock()

	c.logger.Info("session channel open, sending handshake", "handle", h.id)
	data, msg, err := encodePayload(Action{
		Action: c.cfg.InitAction,
		Args:   c.cfg.Settings.Snapshot(),
	})
	if err == nil {
		err = c.transmit(h, socket, data, msg)
	}
	if err != nil {
		c.logger.Error("handshake failed", "handle", h.id, "error", err)
		c.fail(h, fmt.Errorf("handshake: %w", err))
	}
}

func (c *Channel) handleMessage(h *handle, data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		if c.isCurrent(h) {
			c.logger.Warn("dropping malformed frame", "handle", h.id, "error", err)
		}
		return
	}

	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.log.append(Inbound, msg)
	started := false
	if msg.IsAgentInit() && c.status == StatusStarting {
		c.status = StatusStarted
		c.emitStatusLocked(StatusStarted)
		started = true
	}
	c.emitMessageLocked(msg)
	c.mu.Unlock()

	if started {
		c.logger.Info("agent session initialized", "handle", h.id)
	}
	c.drain()
}

func (c *Channel) handleError(h *handle, err error) {
	if !c.isCurrent(h) {
		return
	}
	c.logger.Error("session channel error", "handle", h.id, "error", err)
	c.fail(h, err)
}

// fail reports err for h and queues it for error listeners.
func (c *Channel) fail(h *handle, err error) {
	c.cfg.Reporter.ReportError(err, "handle", h.id)
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.emitErrorLocked(err)
	c.mu.Unlock()
	c.drain()
}

func (c *Channel) handleClose(h *handle, code int, reason string) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		c.logger.Debug("ignoring close from stale handle", "handle", h.id)
		return
	}
	c.current = nil
	c.status = StatusStopped
	c.emitStatusLocked(StatusStopped)
	c.mu.Unlock()

	c.logger.Info("session channel closed", "handle", h.id, "code", code, "reason", reason)
	c.drain()
}

// Status returns the current lifecycle state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsStarted reports whether the agent session has finished initializing.
func (c *Channel) IsStarted() bool {
	return c.Status() == StatusStarted
}

// Messages returns every message sent or received, oldest first.
func (c *Channel) Messages() []Message {
	entries := c.log.snapshot()
	out := make([]Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// Entries is Messages with the direction of each message.
func (c *Channel) Entries() []Entry {
	return c.log.snapshot()
}

func (c *Channel) AddStatusListener(l *StatusListener) { c.statusListeners.add(l) }
func (c *Channel) RemoveStatusListener(l *StatusListener) { c.statusListeners.remove(l) }
func (c *Channel) AddMessageListener(l *MessageListener) { c.messageListeners.add(l) }
func (c *Channel) RemoveMessageListener(l *MessageListener) { c.messageListeners.remove(l) }
func (c *Channel) AddErrorListener(l *ErrorListener) { c.errorListeners.add(l) }
func (c *Channel) RemoveErrorListener(l *ErrorListener) { c.errorListeners.remove(l) }
