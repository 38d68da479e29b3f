package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
	"chat-core/internal/telemetry"
)

// ConversationHandler manages conversation REST endpoints.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, messages repositories.MessageRepository, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		audit:         audit,
	}
}

// CreateConversation creates a conversation with an explicit member set. The
// requester is always part of the set.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Name      *string `json:"name"`
		MemberIDs []int   `json:"member_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	memberIDs := req.MemberIDs
	included := false
	for _, id := range memberIDs {
		if id == userID {
			included = true
			break
		}
	}
	if !included {
		memberIDs = append(memberIDs, userID)
	}

	conv, err := h.conversations.Create(c.Request.Context(), req.Name, memberIDs)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateMemberSet) {
			c.JSON(http.StatusConflict, gin.H{"error": "conversation with these members already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("conversation %d created with %d members", conv.ID, len(memberIDs)),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// ListConversations returns the conversations the authenticated user belongs
// to, members included.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetMessages returns a conversation's history in the same shape the
// websocket replay uses. A conversation with no stored messages, or one that
// does not exist yet, yields an empty list.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	stored, err := h.messages.List(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	history := make([]models.HistoryMessage, 0, len(stored))
	for _, m := range stored {
		history = append(history, m.HistoryEntry(m.AuthorUsername))
	}

	c.JSON(http.StatusOK, gin.H{"messages": history})
}
