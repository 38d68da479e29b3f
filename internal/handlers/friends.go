package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

// friendRequestNotifier hands a friend-request push to the dispatcher.
type friendRequestNotifier interface {
	NotifyFriendRequest(ctx context.Context, recipient models.User, sender string)
}

// FriendRequestHandler accepts friend-request pushes over REST, mirroring the
// websocket relay for clients without an open socket.
type FriendRequestHandler struct {
	users    repositories.UserRepository
	notifier friendRequestNotifier
}

// NewFriendRequestHandler builds a FriendRequestHandler.
func NewFriendRequestHandler(users repositories.UserRepository, notifier friendRequestNotifier) *FriendRequestHandler {
	return &FriendRequestHandler{users: users, notifier: notifier}
}

// SendRequest queues a "New Friend Request" push for the named recipient.
// Delivery is best effort; a recipient without an open socket misses it.
func (h *FriendRequestHandler) SendRequest(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipient, err := h.users.GetByUsername(c.Request.Context(), req.Recipient)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown recipient"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve recipient"})
		return
	}

	h.notifier.NotifyFriendRequest(c.Request.Context(), recipient, c.GetString("username"))
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
