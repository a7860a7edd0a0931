package events

import (
	"context"
	"sync"

	"credence/internal/cases/ports"
)

// Broadcaster fans events out to in-process subscribers. Slow subscribers
// lose events rather than block the processor.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []chan ports.Event
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a buffered channel that receives future events.
func (b *Broadcaster) Subscribe(buffer int) <-chan ports.Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan ports.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Broadcaster) Publish(_ context.Context, event ports.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Fanout publishes each event to every wrapped publisher. The first error is
// returned after all publishers have been tried.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, event ports.Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
