package repositories

import (
	"sync"

	"chat-core/internal/models"
)

// MessageCreated is emitted by the message repository after each successful
// insert. It replaces the hidden save-hook of the system this was rebuilt
// from: consumers subscribe explicitly instead of being wired up implicitly.
type MessageCreated struct {
	Message models.Message
}

// messageFeed fans MessageCreated events out to subscribers. Delivery is
// best-effort: a subscriber that stops draining its channel loses events
// rather than stalling the write path.
type messageFeed struct {
	mu   sync.RWMutex
	subs map[int]chan MessageCreated
	next int
}

func newMessageFeed() *messageFeed {
	return &messageFeed{subs: make(map[int]chan MessageCreated)}
}

func (f *messageFeed) subscribe(buf int) (<-chan MessageCreated, func()) {
	ch := make(chan MessageCreated, buf)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *messageFeed) emit(evt MessageCreated) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
