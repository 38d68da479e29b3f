package bus

import "sync"

// Bus is the in-process group messaging channel: named groups, join/leave,
// best-effort fan-out. Groups exist implicitly while they have members and
// vanish when the last member leaves. Events published by one goroutine to
// one group arrive at each member in publish order; no ordering holds across
// groups. A Bus must be constructed once and injected, never shared through
// package state.
type Bus struct {
	mu     sync.RWMutex
	groups map[string]map[int]chan Event
	next   int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{groups: make(map[string]map[int]chan Event)}
}

// Subscription is one member's handle on a group. Events arrive on C until
// Leave is called; C is never closed, so ranging over it requires selecting
// against the session's own done signal.
type Subscription struct {
	C     <-chan Event
	group string
	id    int
	bus   *Bus
}

// Leave removes the member from its group. Safe to call more than once.
func (s *Subscription) Leave() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	members, ok := s.bus.groups[s.group]
	if !ok {
		return
	}
	delete(members, s.id)
	if len(members) == 0 {
		delete(s.bus.groups, s.group)
	}
}

// Join adds a member to the named group, creating the group on first join.
// buf sets the member's delivery buffer; a member that falls buf events
// behind starts losing events (best-effort delivery).
func (b *Bus) Join(group string, buf int) *Subscription {
	ch := make(chan Event, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.groups[group]
	if !ok {
		members = make(map[int]chan Event)
		b.groups[group] = members
	}
	id := b.next
	b.next++
	members[id] = ch

	return &Subscription{C: ch, group: group, id: id, bus: b}
}

// Publish delivers evt to every current member of the group and reports how
// many deliveries succeeded. Publishing to an empty or unknown group is a
// silent no-op — offline recipients simply miss live pushes.
func (b *Bus) Publish(group string, evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.groups[group] {
		select {
		case ch <- evt:
			delivered++
		default:
			// Slow member: drop rather than block the publisher.
		}
	}
	return delivered
}

// Members reports the current member count of a group.
func (b *Bus) Members(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}
