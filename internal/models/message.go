package models

import "time"

// Message is a single chat message. Text and the attachment are each
// optional, but never both absent. FileURL points at the stored attachment;
// the original upload name is not kept.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	AuthorID       int       `db:"author_id" json:"author_id"`
	Text           string    `db:"text" json:"text"`
	FileURL        *string   `db:"file_url" json:"file,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HistoryTimeFormat is the timestamp layout used on the wire for message
// history (previous_messages frames and the REST history endpoint).
const HistoryTimeFormat = "2006-01-02 15:04:05"

// HistoryMessage is the wire shape of one history entry.
type HistoryMessage struct {
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	File      *string `json:"file"`
	CreatedAt string  `json:"created_at"`
}

// HistoryEntry renders the message for the wire.
func (m Message) HistoryEntry(username string) HistoryMessage {
	return HistoryMessage{
		Username:  username,
		Text:      m.Text,
		File:      m.FileURL,
		CreatedAt: m.CreatedAt.Format(HistoryTimeFormat),
	}
}
