package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-core/internal/attach"
	"chat-core/internal/auth"
	"chat-core/internal/bus"
	"chat-core/internal/middleware"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatWebSocketHandler runs chat sessions: one websocket per (conversation,
// client), joined to the conversation's broadcast group.
type ChatWebSocketHandler struct {
	verifier      *auth.Verifier
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	store         *attach.Store
	bus           *bus.Bus
	presence      *Presence
	logger        *zap.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(
	verifier *auth.Verifier,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	store *attach.Store,
	b *bus.Bus,
	presence *Presence,
	logger *zap.Logger,
) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		verifier:      verifier,
		conversations: conversations,
		messages:      messages,
		store:         store,
		bus:           b,
		presence:      presence,
		logger:        logger,
	}
}

// Handle authenticates the handshake, upgrades the connection and runs the
// session until the peer goes away. Anonymous handshakes are rejected before
// the upgrade.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.chat.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.verifier.Verify(middleware.BearerToken(c))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("chat upgrade failed", zap.Error(err))
		return
	}

	info := newConnInfo(c.Request, identity.UserID)
	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	publishLifecycle(ctx, "chat", conversationID, info, "ws_connect", "")

	session := &chatSession{
		h:              h,
		conversationID: conversationID,
		identity:       identity,
		conn:           NewConnection(socket),
		info:           info,
	}
	go session.run()
}

type chatSession struct {
	h              *ChatWebSocketHandler
	conversationID int
	identity       auth.Identity
	conn           *Connection
	info           ConnInfo
	sub            *bus.Subscription
}

// run drives one session: join the group, mark presence, replay history, then
// pump frames both ways until the socket dies. Session work uses a background
// context because the handshake request context ends with the HTTP handler.
func (s *chatSession) run() {
	ctx := context.Background()
	s.conn.Start()
	s.sub = s.h.bus.Join(bus.ChatGroup(s.conversationID), 64)
	defer s.teardown(ctx)

	go s.pumpEvents()

	if _, err := s.h.conversations.GetOrCreate(ctx, s.conversationID); err != nil {
		s.h.logger.Error("resolve conversation",
			zap.Int("conversation_id", s.conversationID), zap.Error(err))
		return
	}

	if s.h.presence.Connect(s.conversationID, s.identity.UserID) {
		if err := s.h.conversations.SetUserOnline(ctx, s.conversationID, s.identity.UserID); err != nil {
			s.h.logger.Error("set user online", zap.Error(err))
		}
		s.broadcastOnlineUsers(ctx)
	}

	s.sendHistory(ctx)
	s.readLoop(ctx)
}

func (s *chatSession) teardown(ctx context.Context) {
	s.conn.Close(websocket.CloseNormalClosure, "")
	s.sub.Leave()

	if s.h.presence.Disconnect(s.conversationID, s.identity.UserID) {
		if err := s.h.conversations.SetUserOffline(ctx, s.conversationID, s.identity.UserID); err != nil {
			s.h.logger.Error("set user offline", zap.Error(err))
		}
		s.broadcastOnlineUsers(ctx)
	}

	observability.DecWSActive("chat")
	observability.IncWSEvent("chat", "ws_disconnect")
	publishLifecycle(ctx, "chat", s.conversationID, s.info, "ws_disconnect", "")
}

// pumpEvents forwards bus events to the socket.
func (s *chatSession) pumpEvents() {
	for {
		select {
		case <-s.conn.Done():
			return
		case evt := <-s.sub.C:
			frame, ok := encodeChatEvent(evt)
			if !ok {
				continue
			}
			if err := s.conn.Send(frame); err != nil {
				return
			}
		}
	}
}

func (s *chatSession) readLoop(ctx context.Context) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				publishLifecycle(ctx, "chat", s.conversationID, s.info, "ws_error", err.Error())
			}
			return
		}
		s.handleFrame(ctx, raw)
	}
}

type inboundChatFrame struct {
	Message string  `json:"message"`
	File    *string `json:"file"`
}

// handleFrame processes one inbound frame. Malformed frames are logged and
// skipped without dropping the connection; frames with neither text nor
// attachment are dropped silently.
func (s *chatSession) handleFrame(ctx context.Context, raw []byte) {
	var frame inboundChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		observability.IncWSEvent("chat", "malformed_frame")
		s.h.logger.Warn("malformed chat frame",
			zap.Int("conversation_id", s.conversationID), zap.Error(err))
		return
	}

	var fileURL *string
	if frame.File != nil && *frame.File != "" {
		decoded, err := attach.Decode(*frame.File)
		if err != nil {
			observability.IncWSEvent("chat", "malformed_frame")
			s.h.logger.Warn("malformed attachment",
				zap.Int("conversation_id", s.conversationID), zap.Error(err))
			return
		}
		url, err := s.h.store.Save(decoded)
		if err != nil {
			s.h.logger.Error("store attachment", zap.Error(err))
			return
		}
		fileURL = &url
	}

	if fileURL == nil && strings.TrimSpace(frame.Message) == "" {
		return
	}

	if _, err := s.h.messages.Append(ctx, s.conversationID, s.identity.UserID, frame.Message, fileURL); err != nil {
		s.h.logger.Error("persist message",
			zap.Int("conversation_id", s.conversationID), zap.Error(err))
		return
	}

	if strings.TrimSpace(frame.Message) != "" {
		s.h.bus.Publish(bus.ChatGroup(s.conversationID), bus.Event{
			Kind: bus.KindChatMessage,
			ChatMessage: &bus.ChatMessage{
				Message:  frame.Message,
				Username: s.identity.Username,
				File:     fileURL,
			},
		})
		observability.IncBusEvent(bus.KindChatMessage.String())
	}
}

// sendHistory replays the conversation's stored messages to this client. A
// lookup failure degrades to an empty history rather than killing the session.
func (s *chatSession) sendHistory(ctx context.Context) {
	stored, err := s.h.messages.List(ctx, s.conversationID)
	if err != nil {
		s.h.logger.Error("list history",
			zap.Int("conversation_id", s.conversationID), zap.Error(err))
		stored = nil
	}

	history := make([]models.HistoryMessage, 0, len(stored))
	for _, m := range stored {
		history = append(history, m.HistoryEntry(m.AuthorUsername))
	}

	payload, ok := marshalFrame(previousMessagesFrame{Type: "previous_messages", Messages: history})
	if !ok {
		return
	}
	_ = s.conn.Send(payload)
}

// broadcastOnlineUsers publishes the conversation's current online-user list
// to the whole group, this session included.
func (s *chatSession) broadcastOnlineUsers(ctx context.Context) {
	users, err := s.h.conversations.OnlineUsers(ctx, s.conversationID)
	if err != nil {
		s.h.logger.Error("list online users",
			zap.Int("conversation_id", s.conversationID), zap.Error(err))
		return
	}

	s.h.bus.Publish(bus.ChatGroup(s.conversationID), bus.Event{
		Kind:        bus.KindOnlineUsers,
		OnlineUsers: users,
	})
	observability.IncBusEvent(bus.KindOnlineUsers.String())
}
