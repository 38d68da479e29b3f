package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreate(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, name *string, memberIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, name, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) ListMembers(ctx context.Context, conversationID int) ([]models.User, error) {
	args := m.Called(ctx, conversationID)
	var members []models.User
	if val := args.Get(0); val != nil {
		members = val.([]models.User)
	}
	return members, args.Error(1)
}

func (m *ConversationRepositoryMock) OnlineUsers(ctx context.Context, conversationID int) ([]string, error) {
	args := m.Called(ctx, conversationID)
	var usernames []string
	if val := args.Get(0); val != nil {
		usernames = val.([]string)
	}
	return usernames, args.Error(1)
}

func (m *ConversationRepositoryMock) SetUserOnline(ctx context.Context, conversationID int, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetUserOffline(ctx context.Context, conversationID int, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, conversationID int, authorID int, text string, fileURL *string) (models.Message, error) {
	args := m.Called(ctx, conversationID, authorID, text, fileURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, conversationID int) ([]repositories.StoredMessage, error) {
	args := m.Called(ctx, conversationID)
	var msgs []repositories.StoredMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]repositories.StoredMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SubscribeCreated(buf int) (<-chan repositories.MessageCreated, func()) {
	args := m.Called(buf)
	var feed <-chan repositories.MessageCreated
	if val := args.Get(0); val != nil {
		feed = val.(<-chan repositories.MessageCreated)
	}
	cancel := func() {}
	if val := args.Get(1); val != nil {
		cancel = val.(func())
	}
	return feed, cancel
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
