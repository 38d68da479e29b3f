package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

// StoredMessage is a message joined with its author's username.
type StoredMessage struct {
	models.Message
	AuthorUsername string `db:"author_username"`
}

// MessageRepository defines the message side of the persistence gateway.
// Append emits a MessageCreated event observable through SubscribeCreated;
// the event fires after the row is committed, outside any transaction with
// the broadcast that usually follows.
type MessageRepository interface {
	Append(ctx context.Context, conversationID int, authorID int, text string, fileURL *string) (models.Message, error)
	List(ctx context.Context, conversationID int) ([]StoredMessage, error)
	SubscribeCreated(buf int) (<-chan MessageCreated, func())
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db   *sqlx.DB
	feed *messageFeed
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, feed: newMessageFeed()}
}

// Append persists one message. Authorship membership is convention, not a
// constraint (the data layer does not reject non-member authors).
func (r *MessageRepo) Append(ctx context.Context, conversationID int, authorID int, text string, fileURL *string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, author_id, text, file_url)
         VALUES ($1, $2, $3, $4)
         RETURNING id, conversation_id, author_id, text, file_url, created_at`,
		conversationID, authorID, text, fileURL).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	r.feed.emit(MessageCreated{Message: msg})
	return msg, nil
}

// List returns the conversation's messages in ascending creation order with
// author usernames resolved. A missing conversation yields an empty result.
func (r *MessageRepo) List(ctx context.Context, conversationID int) ([]StoredMessage, error) {
	var msgs []StoredMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.id, m.conversation_id, m.author_id, m.text, m.file_url, m.created_at,
                u.username AS author_username
         FROM messages m
         INNER JOIN users u ON u.id = m.author_id
         WHERE m.conversation_id=$1
         ORDER BY m.created_at ASC, m.id ASC`, conversationID)
	return msgs, err
}

// SubscribeCreated registers an observer for message-created events.
func (r *MessageRepo) SubscribeCreated(buf int) (<-chan MessageCreated, func()) {
	return r.feed.subscribe(buf)
}
