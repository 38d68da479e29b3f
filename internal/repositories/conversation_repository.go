package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDuplicateMemberSet   = errors.New("conversation with this member set already exists")
)

// ConversationRepository abstracts conversation and presence persistence.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, conversationID int) (models.Conversation, error)
	Create(ctx context.Context, name *string, memberIDs []int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	ListMembers(ctx context.Context, conversationID int) ([]models.User, error)
	OnlineUsers(ctx context.Context, conversationID int) ([]string, error)
	SetUserOnline(ctx context.Context, conversationID int, userID int) error
	SetUserOffline(ctx context.Context, conversationID int, userID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreate resolves a conversation by id, lazily creating an empty one on
// first use. Lazily created conversations have no members until an external
// collaborator populates membership.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, conversationID int) (models.Conversation, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, conversationID); err != nil {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, name, is_group, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create creates a conversation with a fixed member set atomically. A
// conversation with exactly the same member set is rejected, mirroring the
// duplicate check of the creation flow this replaces. is_group is derived
// from the final member count.
func (r *ConversationRepo) Create(ctx context.Context, name *string, memberIDs []int) (models.Conversation, error) {
	memberSet := map[int]struct{}{}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int64, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, int64(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var existing int
	err = tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM (
            SELECT conversation_id FROM conversation_members
            GROUP BY conversation_id
            HAVING array_agg(user_id ORDER BY user_id) = $1::int[]
        ) same_set`, pq.Array(ids))
	if err != nil {
		return models.Conversation{}, err
	}
	if existing > 0 {
		err = ErrDuplicateMemberSet
		return models.Conversation{}, err
	}

	var conv models.Conversation
	isGroup := len(ids) > 2
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (name, is_group) VALUES ($1, $2) RETURNING id, name, is_group, created_at`,
		name, isGroup).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`, conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ListForUser returns the conversations the user belongs to, newest first,
// with member identities attached.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT c.id, c.name, c.is_group, c.created_at FROM conversations c
         INNER JOIN conversation_members cm ON cm.conversation_id = c.id
         WHERE cm.user_id=$1 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		members, err := r.ListMembers(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.ConversationSummary{Conversation: conv, Members: members})
	}
	return result, nil
}

// ListMembers returns member identities ordered by username. A missing
// conversation degrades to an empty result.
func (r *ConversationRepo) ListMembers(ctx context.Context, conversationID int) ([]models.User, error) {
	var members []models.User
	err := r.db.SelectContext(ctx, &members,
		`SELECT u.id, u.username FROM users u
         INNER JOIN conversation_members cm ON cm.user_id = u.id
         WHERE cm.conversation_id=$1 ORDER BY u.username ASC`, conversationID)
	return members, err
}

// OnlineUsers returns the usernames currently online in the conversation.
func (r *ConversationRepo) OnlineUsers(ctx context.Context, conversationID int) ([]string, error) {
	var usernames []string
	err := r.db.SelectContext(ctx, &usernames,
		`SELECT u.username FROM users u
         INNER JOIN conversation_online_users cou ON cou.user_id = u.id
         WHERE cou.conversation_id=$1 ORDER BY u.username ASC`, conversationID)
	return usernames, err
}

// SetUserOnline records the user in the conversation's online set. The insert
// is guarded on membership so users_online stays a subset of members even for
// lazily created conversations. Not atomic with respect to concurrent
// connect/disconnect of the same pair; a lost update is acceptable here.
func (r *ConversationRepo) SetUserOnline(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversation_online_users (conversation_id, user_id)
         SELECT $1, $2 WHERE EXISTS (
             SELECT 1 FROM conversation_members WHERE conversation_id=$1 AND user_id=$2
         )
         ON CONFLICT DO NOTHING`, conversationID, userID)
	return err
}

// SetUserOffline removes the user from the conversation's online set.
func (r *ConversationRepo) SetUserOffline(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_online_users WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	return err
}
