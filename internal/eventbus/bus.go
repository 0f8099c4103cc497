// Package eventbus is an in-process fanout of small signals between the
// pipeline, the bot and the digest job.
package eventbus

import (
	"sync"
	"time"
)

// Event types.
const (
	// NewNotification fires after a history entry was persisted. No payload.
	NewNotification = "NEW_NOTIFICATION"
	// StateChanged fires after a tracker mutation. Data is a StateData.
	StateChanged = "STATE_CHANGED"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

type StateData struct {
	Key    string
	Action string
}

// Bus delivers events without blocking the publisher. Subscribers that fall
// behind their buffer lose events.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	next uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends never block, so holding the read lock keeps close() in
	// unsubscribe from racing with delivery.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
