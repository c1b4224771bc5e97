package events

import "sync"

// Kind identifies what part of the client state changed.
type Kind string

const (
	ViewChanged       Kind = "view_changed"
	BookmarkChanged   Kind = "bookmark_changed"
	IdentityChanged   Kind = "identity_changed"
	GenerationChanged Kind = "generation_changed"
)

// Event carries only identifiers; subscribers read the current state from
// the client after receiving one.
type Event struct {
	Kind    Kind
	View    string // set for ViewChanged
	ImageID int64  // set for BookmarkChanged
	UserID  int64  // set for IdentityChanged, 0 for anonymous
}

// Bus is an in-process fan-out pub-sub. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers evt to every subscriber with buffer space and reports how
// many received it.
func (b *Bus) Publish(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- evt:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe registers a subscriber with the given buffer. The returned cancel
// func unregisters it and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
}

// Close unregisters and closes every subscriber channel.
func (b *Bus) Close() {
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
