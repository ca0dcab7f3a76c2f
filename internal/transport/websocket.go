package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultCloseTimeout = 5 * time.Second
)

// WebsocketOptions tunes a WebsocketDialer. Zero values use defaults.
type WebsocketOptions struct {
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration
	// CloseTimeout bounds how long a requested close waits for the peer's
	// close frame before the connection is dropped.
	CloseTimeout time.Duration
	Logger       *slog.Logger
}

// WebsocketDialer dials gorilla websocket connections.
type WebsocketDialer struct {
	dialer *websocket.Dialer
	opts   WebsocketOptions
}

// NewWebsocketDialer creates a dialer. A nil base uses websocket.DefaultDialer.
func NewWebsocketDialer(base *websocket.Dialer, opts WebsocketOptions) *WebsocketDialer {
	if base == nil {
		base = websocket.DefaultDialer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = defaultCloseTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &WebsocketDialer{dialer: base, opts: opts}
}

// Dial starts connecting in the background and returns the socket at once.
func (d *WebsocketDialer) Dial(url string, protocols []string, h Handlers) Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &wsSocket{
		opts:   d.opts,
		h:      h,
		ctx:    ctx,
		cancel: cancel,
	}
	dialer := *d.dialer
	dialer.Subprotocols = append([]string(nil), protocols...)
	go s.run(&dialer, url)
	return s
}

type wsSocket struct {
	opts WebsocketOptions
	h    Handlers

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (data, ping, close)
	conn    *websocket.Conn
	closing bool
}

func (s *wsSocket) run(dialer *websocket.Dialer, url string) {
	conn, _, err := dialer.DialContext(s.ctx, url, nil)
	if err != nil {
		if s.ctx.Err() != nil {
			s.h.close(CloseNormal, "closed before open")
			return
		}
		s.h.error(fmt.Errorf("dial %s: %w", url, err))
		s.h.close(CloseAbnormal, err.Error())
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		s.h.close(CloseNormal, "closed before open")
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.h.open()

	pingCtx, pingCancel := context.WithCancel(s.ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx, conn)

	code, reason := s.readLoop(conn)

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	s.cancel()
	conn.Close()
	s.h.close(code, reason)
}

// readLoop delivers frames until the connection ends and reports why.
func (s *wsSocket) readLoop(conn *websocket.Conn) (int, string) {
	conn.SetPongHandler(func(string) error {
		// After Close the read deadline is the close timeout; keep it.
		if s.isClosing() {
			return nil
		}
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			// gorilla reports a dropped TCP connection as a 1006 close
			// error; that one is a transport failure, not a close frame.
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				return ce.Code, ce.Text
			}
			if s.isClosing() {
				return CloseNormal, "closed by client"
			}
			s.h.error(fmt.Errorf("read: %w", err))
			return CloseAbnormal, err.Error()
		}
		s.h.message(data)
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or a ping fails.
func (s *wsSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.opts.Logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *wsSocket) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *wsSocket) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	closing := s.closing
	s.mu.Unlock()
	if conn == nil || closing {
		return ErrNotOpen
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	conn := s.conn
	s.mu.Unlock()

	// Cancels the dial if it is still running, otherwise stops the pings.
	s.cancel()
	if conn == nil {
		// run reports the close once the dial returns.
		return nil
	}

	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
	s.writeMu.Unlock()
	if err != nil {
		// The peer will never answer; unblock the read loop now.
		conn.Close()
		return nil
	}
	// Wait a bounded time for the peer's close frame to end the read loop.
	conn.SetReadDeadline(time.Now().Add(s.opts.CloseTimeout))
	return nil
}
