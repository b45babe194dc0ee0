package pgsqlkit

import (
	"log/slog"
	"sync"
)

// default connection registry: the first registered Connection wins and is
// never replaced until ResetDefaultConnection.
var (
	defaultMu   sync.RWMutex
	defaultConn *Connection
)

// RegisterDefaultConnection makes c the process default if none is set yet.
// It reports whether c became the default.
func RegisterDefaultConnection(c *Connection) bool {
	if c == nil {
		return false
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultConn != nil {
		return false
	}
	defaultConn = c
	return true
}

// DefaultConnection returns the first Connection created in this process, or
// nil.
func DefaultConnection() *Connection {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultConn
}

// ResetDefaultConnection clears the registry. Meant for tests.
func ResetDefaultConnection() {
	defaultMu.Lock()
	defaultConn = nil
	defaultMu.Unlock()
}

// subscriberBuffer is the per-subscriber backlog before completions are
// dropped.
const subscriberBuffer = 64

var hub = &notifier{subs: make(map[int]chan Completion)}

type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Completion
}

// Subscribe returns a channel receiving every async Completion in the
// process, and a func that unsubscribes and closes the channel. A subscriber
// that falls behind loses completions rather than stalling connections.
func Subscribe() (<-chan Completion, func()) {
	return hub.subscribe()
}

func (n *notifier) subscribe() (<-chan Completion, func()) {
	ch := make(chan Completion, subscriberBuffer)
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *notifier) publish(c Completion) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		select {
		case ch <- c:
		default:
			slog.Warn("pgsqlkit: completion dropped, subscriber is full", "subscriber", id, "kind", c.Kind)
		}
	}
}
