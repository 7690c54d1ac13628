package rcon

import "sync"

// EventKind enumerates connection notifications.
type EventKind int

const (
	// EventError carries a *TransportError; the connection is now Erroring.
	EventError EventKind = iota + 1
	// EventEnd means the peer closed the connection.
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a connection level notification.
type Event struct {
	Kind     EventKind
	ServerID int
	Err      error
}

const subscriberBuffer = 8

// broadcaster fans events out to per-connection subscribers.
type broadcaster struct {
	mu     sync.Mutex
	next   uint64
	subs   map[uint64]chan Event
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan Event)}
}

// subscribe registers a listener. On a closed broadcaster the returned
// channel is already closed.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// publish delivers ev without blocking; a full subscriber misses it.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// close ends every subscription.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
