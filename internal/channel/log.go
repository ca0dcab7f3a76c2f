package channel

import "sync"

// Direction tells whether a logged message was sent or received.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "in"
	}
	return "out"
}

// Entry is one record of the message log.
type Entry struct {
	Direction Direction
	Message   Message
}

// messageLog is the append-only record of every message sent or received.
// The channel never truncates it.
type messageLog struct {
	mu      sync.RWMutex
	entries []Entry
}

func (l *messageLog) append(dir Direction, m Message) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Direction: dir, Message: m})
	l.mu.Unlock()
}

func (l *messageLog) snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}
