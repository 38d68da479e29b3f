package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("username", "alice")
		c.Next()
	})
	r.POST("/conversations", handler.CreateConversation)
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation/messages", handler.GetMessages)
	return r
}

func TestCreateConversationIncludesRequester(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversations, nil, nil)
	router := setupConversationRouter(handler)

	conversations.On("Create", mock.Anything, (*string)(nil), []int{2, 3, 1}).
		Return(models.Conversation{ID: 10, IsGroup: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"member_ids":[2,3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	conversations.AssertExpectations(t)
}

func TestCreateConversationDuplicateSet(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversations, nil, nil)
	router := setupConversationRouter(handler)

	conversations.On("Create", mock.Anything, (*string)(nil), []int{1, 2}).
		Return(models.Conversation{}, repositories.ErrDuplicateMemberSet).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"member_ids":[1,2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	conversations.AssertExpectations(t)
}

func TestCreateConversationBadBody(t *testing.T) {
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), nil, nil)
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"member_ids":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversations(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversations, nil, nil)
	router := setupConversationRouter(handler)

	name := "team"
	conversations.On("ListForUser", mock.Anything, 1).Return([]models.ConversationSummary{
		{
			Conversation: models.Conversation{ID: 3, Name: &name, IsGroup: true, CreatedAt: time.Now()},
			Members:      []models.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}},
		},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp["conversations"], 1)
	conversations.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(conversations, nil, nil)
	router := setupConversationRouter(handler)

	conversations.On("ListForUser", mock.Anything, 1).
		Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	conversations.AssertExpectations(t)
}

func TestGetMessagesHistoryShape(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), messages, nil)
	router := setupConversationRouter(handler)

	created := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	messages.On("List", mock.Anything, 5).Return([]repositories.StoredMessage{
		{
			Message:        models.Message{ID: 1, ConversationID: 5, AuthorID: 2, Text: "hi", CreatedAt: created},
			AuthorUsername: "bob",
		},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"messages":[{"username":"bob","text":"hi","file":null,"created_at":"2026-08-28 10:30:00"}]}`,
		rec.Body.String())
	messages.AssertExpectations(t)
}

func TestGetMessagesEmptyConversation(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), messages, nil)
	router := setupConversationRouter(handler)

	messages.On("List", mock.Anything, 99).Return([]repositories.StoredMessage{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/99/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	messages.AssertExpectations(t)
}

func TestGetMessagesInvalidID(t *testing.T) {
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), nil)
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
