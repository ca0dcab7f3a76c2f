package channel

import (
	"fmt"
	"log/slog"
	"sync"
)

// Listener is a subscriber handle. Registries compare handles by identity,
// so keep the pointer returned by NewListener to remove it later.
type Listener[T any] struct {
	fn func(T)
}

// NewListener wraps fn in a handle that can be added to a channel.
func NewListener[T any](fn func(T)) *Listener[T] {
	return &Listener[T]{fn: fn}
}

type (
	StatusListener  = Listener[Status]
	MessageListener = Listener[Message]
	ErrorListener   = Listener[error]
)

// registry is an ordered list of listeners for one category. Insertion order
// is delivery order.
type registry[T any] struct {
	category string
	logger   *slog.Logger

	mu        sync.Mutex
	listeners []*Listener[T]
}

func newRegistry[T any](category string, logger *slog.Logger) *registry[T] {
	return &registry[T]{category: category, logger: logger}
}

// add appends l. Adding the same handle twice delivers twice.
func (r *registry[T]) add(l *Listener[T]) {
	if l == nil || l.fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// remove drops every registration of l. Unknown handles are ignored.
func (r *registry[T]) remove(l *Listener[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.listeners[:0:0]
	for _, existing := range r.listeners {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	r.listeners = kept
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// notify calls every listener registered at the time of the call. A panic in
// one listener is logged and does not stop delivery to the rest.
func (r *registry[T]) notify(v T) {
	r.notifyWhile(v, nil)
}

// notifyWhile is notify that stops as soon as live reports false. live is
// checked before each listener, so a listener that restarts the channel
// keeps v from reaching the ones after it.
func (r *registry[T]) notifyWhile(v T, live func() bool) {
	r.mu.Lock()
	snapshot := append([]*Listener[T](nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range snapshot {
		if live != nil && !live() {
			return
		}
		r.call(l, v)
	}
}

func (r *registry[T]) call(l *Listener[T], v T) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("listener panicked",
				"category", r.category,
				"panic", fmt.Sprint(p),
			)
		}
	}()
	l.fn(v)
}
