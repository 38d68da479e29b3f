package ws

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-core/internal/attach"
	"chat-core/internal/auth"
	"chat-core/internal/bus"
	"chat-core/internal/mocks"
	"chat-core/internal/models"
)

func newTestSession(t *testing.T, conversations *mocks.ConversationRepositoryMock, messages *mocks.MessageRepositoryMock) (*chatSession, *bus.Bus) {
	t.Helper()

	store, err := attach.NewStore(t.TempDir(), "/media")
	require.NoError(t, err)

	b := bus.New()
	h := NewChatWebSocketHandler(
		auth.NewVerifier("secret"),
		conversations,
		messages,
		store,
		b,
		NewPresence(),
		zap.NewNop(),
	)
	session := &chatSession{
		h:              h,
		conversationID: 5,
		identity:       auth.Identity{UserID: 1, Username: "alice"},
	}
	return session, b
}

func recvEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus event")
		return bus.Event{}
	}
}

func TestHandleFrameTextPersistsAndBroadcasts(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	messages.On("Append", mock.Anything, 5, 1, "hello", (*string)(nil)).
		Return(models.Message{ID: 1, ConversationID: 5, AuthorID: 1, Text: "hello"}, nil).Once()

	session.handleFrame(context.Background(), []byte(`{"message":"hello"}`))

	evt := recvEvent(t, sub.C)
	require.Equal(t, bus.KindChatMessage, evt.Kind)
	require.NotNil(t, evt.ChatMessage)
	assert.Equal(t, "hello", evt.ChatMessage.Message)
	assert.Equal(t, "alice", evt.ChatMessage.Username)
	assert.Nil(t, evt.ChatMessage.File)

	messages.AssertExpectations(t)
}

func TestHandleFrameBlankTextDroppedSilently(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	session.handleFrame(context.Background(), []byte(`{"message":"   "}`))
	session.handleFrame(context.Background(), []byte(`{}`))

	assert.Zero(t, len(sub.C))
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleFrameMalformedSkipped(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, _ := newTestSession(t, conversations, messages)

	session.handleFrame(context.Background(), []byte(`not json`))
	session.handleFrame(context.Background(), []byte(`{"message":"hi","file":"no-data-uri"}`))

	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleFrameFileOnlyPersistsWithoutBroadcast(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	var savedURL *string
	messages.On("Append", mock.Anything, 5, 1, "", mock.MatchedBy(func(url *string) bool {
		savedURL = url
		return url != nil && *url != ""
	})).Return(models.Message{ID: 2, ConversationID: 5, AuthorID: 1}, nil).Once()

	payload := base64.StdEncoding.EncodeToString([]byte("fake"))
	session.handleFrame(context.Background(), []byte(`{"message":"","file":"data:image/png;base64,`+payload+`"}`))

	assert.Zero(t, len(sub.C))
	require.NotNil(t, savedURL)
	assert.Contains(t, *savedURL, "/media/")
	assert.Contains(t, *savedURL, ".png")
	messages.AssertExpectations(t)
}

func TestHandleFrameTextWithFileBroadcastsStoredURL(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	messages.On("Append", mock.Anything, 5, 1, "look", mock.AnythingOfType("*string")).
		Return(models.Message{ID: 3, ConversationID: 5, AuthorID: 1, Text: "look"}, nil).Once()

	payload := base64.StdEncoding.EncodeToString([]byte("report"))
	session.handleFrame(context.Background(), []byte(`{"message":"look","file":"data:application/pdf;base64,`+payload+`"}`))

	evt := recvEvent(t, sub.C)
	require.Equal(t, bus.KindChatMessage, evt.Kind)
	require.NotNil(t, evt.ChatMessage.File)
	assert.Contains(t, *evt.ChatMessage.File, ".pdf")
	messages.AssertExpectations(t)
}

func TestHandleFramePersistFailureSkipsBroadcast(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	messages.On("Append", mock.Anything, 5, 1, "hello", (*string)(nil)).
		Return(models.Message{}, assert.AnError).Once()

	session.handleFrame(context.Background(), []byte(`{"message":"hello"}`))

	assert.Zero(t, len(sub.C))
	messages.AssertExpectations(t)
}

func TestBroadcastOnlineUsers(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	session, b := newTestSession(t, conversations, messages)

	sub := b.Join(bus.ChatGroup(5), 4)
	defer sub.Leave()

	conversations.On("OnlineUsers", mock.Anything, 5).Return([]string{"alice", "bob"}, nil).Once()

	session.broadcastOnlineUsers(context.Background())

	evt := recvEvent(t, sub.C)
	require.Equal(t, bus.KindOnlineUsers, evt.Kind)
	assert.Equal(t, []string{"alice", "bob"}, evt.OnlineUsers)
	conversations.AssertExpectations(t)
}
