package ws

import "sync"

// Presence counts open connections per (conversation, user) pair. A user is
// online in a conversation while at least one connection is open; the first
// connection and the last disconnect are the only transitions callers need to
// persist or broadcast.
type Presence struct {
	mu     sync.Mutex
	counts map[int]map[int]int
}

// NewPresence creates an empty tracker.
func NewPresence() *Presence {
	return &Presence{counts: make(map[int]map[int]int)}
}

// Connect records one more connection and reports whether the user just came
// online in the conversation.
func (p *Presence) Connect(conversationID, userID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.counts[conversationID]
	if !ok {
		users = make(map[int]int)
		p.counts[conversationID] = users
	}
	users[userID]++
	return users[userID] == 1
}

// Disconnect records one connection gone and reports whether the user just
// went offline in the conversation. Disconnecting below zero is a no-op.
func (p *Presence) Disconnect(conversationID, userID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.counts[conversationID]
	if !ok {
		return false
	}
	n, ok := users[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(users, userID)
		if len(users) == 0 {
			delete(p.counts, conversationID)
		}
		return true
	}
	users[userID] = n - 1
	return false
}

// Online reports the number of open connections for the pair.
func (p *Presence) Online(conversationID, userID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[conversationID][userID]
}
