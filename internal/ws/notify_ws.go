package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-core/internal/auth"
	"chat-core/internal/bus"
	"chat-core/internal/middleware"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

// NotificationWebSocketHandler runs message-notification sessions: one
// websocket per client, joined to the user's personal notification group.
// Clients only listen on this socket.
type NotificationWebSocketHandler struct {
	verifier *auth.Verifier
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewNotificationWebSocketHandler constructs a NotificationWebSocketHandler.
func NewNotificationWebSocketHandler(verifier *auth.Verifier, b *bus.Bus, logger *zap.Logger) *NotificationWebSocketHandler {
	return &NotificationWebSocketHandler{verifier: verifier, bus: b, logger: logger}
}

// Handle upgrades the connection and forwards notify events until the peer
// goes away.
func (h *NotificationWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.notifications.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.verifier.Verify(middleware.BearerToken(c))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("notifications upgrade failed", zap.Error(err))
		return
	}

	info := newConnInfo(c.Request, identity.UserID)
	observability.IncWSActive("notifications")
	observability.IncWSEvent("notifications", "ws_connect")
	publishLifecycle(ctx, "notifications", identity.UserID, info, "ws_connect", "")

	session := &notifySession{
		kind:     "notifications",
		identity: identity,
		conn:     NewConnection(socket),
		sub:      h.bus.Join(bus.NotificationsGroup(identity.UserID), 64),
		info:     info,
		logger:   h.logger,
	}
	go session.run(nil)
}

// FriendRequestWebSocketHandler runs friend-request relay sessions. Besides
// listening for pushes on the user's request group, clients send frames naming
// a recipient to notify.
type FriendRequestWebSocketHandler struct {
	verifier *auth.Verifier
	bus      *bus.Bus
	users    repositories.UserRepository
	notifier FriendRequestNotifier
	logger   *zap.Logger
}

// FriendRequestNotifier hands a friend-request push to the dispatcher.
type FriendRequestNotifier interface {
	NotifyFriendRequest(ctx context.Context, recipient models.User, sender string)
}

// NewFriendRequestWebSocketHandler constructs a FriendRequestWebSocketHandler.
func NewFriendRequestWebSocketHandler(
	verifier *auth.Verifier,
	b *bus.Bus,
	users repositories.UserRepository,
	notifier FriendRequestNotifier,
	logger *zap.Logger,
) *FriendRequestWebSocketHandler {
	return &FriendRequestWebSocketHandler{
		verifier: verifier,
		bus:      b,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle upgrades the connection, forwards pushes and relays outbound
// friend-request frames.
func (h *FriendRequestWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.friend_requests.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.verifier.Verify(middleware.BearerToken(c))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("friend requests upgrade failed", zap.Error(err))
		return
	}

	info := newConnInfo(c.Request, identity.UserID)
	observability.IncWSActive("friend_requests")
	observability.IncWSEvent("friend_requests", "ws_connect")
	publishLifecycle(ctx, "friend_requests", identity.UserID, info, "ws_connect", "")

	session := &notifySession{
		kind:     "friend_requests",
		identity: identity,
		conn:     NewConnection(socket),
		sub:      h.bus.Join(bus.RequestNotificationsGroup(identity.UserID), 64),
		info:     info,
		logger:   h.logger,
	}
	go session.run(func(ctx context.Context, raw []byte) {
		h.relayRequest(ctx, identity, raw)
	})
}

type inboundRequestFrame struct {
	Recipient string `json:"recipient"`
}

// relayRequest resolves the recipient named in the frame and hands the push
// to the dispatcher. Unknown recipients and malformed frames are logged and
// skipped.
func (h *FriendRequestWebSocketHandler) relayRequest(ctx context.Context, sender auth.Identity, raw []byte) {
	var frame inboundRequestFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		observability.IncWSEvent("friend_requests", "malformed_frame")
		h.logger.Warn("malformed friend request frame", zap.Error(err))
		return
	}
	if frame.Recipient == "" {
		return
	}

	recipient, err := h.users.GetByUsername(ctx, frame.Recipient)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			h.logger.Warn("friend request for unknown user", zap.String("recipient", frame.Recipient))
		} else {
			h.logger.Error("resolve friend request recipient", zap.Error(err))
		}
		return
	}

	h.notifier.NotifyFriendRequest(ctx, recipient, sender.Username)
}

// notifySession is the shared session shape of both personal-group sockets.
// onFrame handles inbound frames; nil means the client is listen-only and
// inbound payloads are drained and ignored.
type notifySession struct {
	kind     string
	identity auth.Identity
	conn     *Connection
	sub      *bus.Subscription
	info     ConnInfo
	logger   *zap.Logger
}

func (s *notifySession) run(onFrame func(ctx context.Context, raw []byte)) {
	ctx := context.Background()
	s.conn.Start()
	defer s.teardown(ctx)

	go s.pumpEvents()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(s.kind, "ws_error")
				publishLifecycle(ctx, s.kind, s.identity.UserID, s.info, "ws_error", err.Error())
			}
			return
		}
		if onFrame != nil {
			onFrame(ctx, raw)
		}
	}
}

func (s *notifySession) teardown(ctx context.Context) {
	s.conn.Close(websocket.CloseNormalClosure, "")
	s.sub.Leave()
	observability.DecWSActive(s.kind)
	observability.IncWSEvent(s.kind, "ws_disconnect")
	publishLifecycle(ctx, s.kind, s.identity.UserID, s.info, "ws_disconnect", "")
}

func (s *notifySession) pumpEvents() {
	for {
		select {
		case <-s.conn.Done():
			return
		case evt := <-s.sub.C:
			frame, ok := encodeNotifyEvent(evt)
			if !ok {
				continue
			}
			if err := s.conn.Send(frame); err != nil {
				return
			}
		}
	}
}
