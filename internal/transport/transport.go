// Package transport abstracts the duplex socket underneath the session
// channel. A Dialer hands back a Socket immediately; connection progress is
// reported through Handlers, which fire in transport order from a single
// goroutine per socket.
package transport

import "errors"

// ErrNotOpen is returned by Send before the socket has opened or after it
// has closed.
var ErrNotOpen = errors.New("socket not open")

// Close codes mirror the websocket close codes callers care about.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Handlers are the lifecycle callbacks registered on a socket. Any of them
// may be nil.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	// OnClose fires exactly once per socket, after which no other handler
	// fires.
	OnClose func(code int, reason string)
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) message(data []byte) {
	if h.OnMessage != nil {
		h.OnMessage(data)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handlers) close(code int, reason string) {
	if h.OnClose != nil {
		h.OnClose(code, reason)
	}
}

// Socket is one live connection attempt. It is not reusable.
type Socket interface {
	// Send transmits one text frame.
	Send(data []byte) error
	// Close requests closure and returns without waiting for it. Calling it
	// more than once is safe.
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(url string, protocols []string, h Handlers) Socket
}
