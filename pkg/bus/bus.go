// Package bus fans widget state-change events out to renderers.
package bus

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Bus delivers events to every subscriber without ever blocking the publisher.
type Bus struct {
	subscribers map[uint64]chan Event
	nextID      uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan Event),
		done:        make(chan struct{}),
	}
}

// Publish stamps the event and offers it to every subscriber. It reports false
// once the bus is closed.
func (b *Bus) Publish(event Event) bool {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return false
	default:
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop, renderers re-read the snapshot anyway.
		}
	}

	return true
}

// Subscribe registers a buffered event channel. The channel is closed when ctx
// ends, when unsubscribe is called, or when the bus closes.
func (b *Bus) Subscribe(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-b.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}

// Close stops delivery and closes every subscription.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		close(b.done)
		for id, ch := range b.subscribers {
			close(ch)
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}
