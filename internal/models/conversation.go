package models

import "time"

// Conversation is a chat thread with a fixed member set, either direct
// (two members) or group (more than two). Membership is immutable after
// creation; deletion is not a core concern.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	Conversation
	Members []User `json:"members"`
}
