package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rayan1605/MainChatApplication/internal/cache"
	"github.com/Rayan1605/MainChatApplication/internal/middleware"
	"github.com/Rayan1605/MainChatApplication/internal/models"
	"github.com/Rayan1605/MainChatApplication/internal/services"
	"github.com/Rayan1605/MainChatApplication/pkg/errors"
)

// ChatService is the mutation pipeline behind the chat routes.
type ChatService interface {
	Reaction(ctx context.Context, req services.ReactionRequest) (*models.Message, error)
	MarkMessageAsDeleted(ctx context.Context, req services.DeletionRequest) (*models.Message, error)
}

// MessageReader serves conversation history from the hot cache.
type MessageReader interface {
	ConversationID(ctx context.Context, userID, otherUserID string) (string, error)
	GetChatMessagesFromCache(ctx context.Context, conversationID string) ([]models.Message, error)
}

type ChatHandler struct {
	service  ChatService
	messages MessageReader
}

func NewChatHandler(service ChatService, messages MessageReader) *ChatHandler {
	return &ChatHandler{service: service, messages: messages}
}

// Reaction handles PUT /chat/message/reaction.
func (h *ChatHandler) Reaction(c *gin.Context) {
	var req services.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequest("Invalid request body"))
		return
	}
	req.Username = c.GetString(middleware.ContextUsername)

	if _, err := h.service.Reaction(c.Request.Context(), req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message reaction added"})
}

// MarkMessageAsDeleted handles
// PUT /chat/message/mark-as-deleted/:messageId/:senderId/:receiverId/:type.
func (h *ChatHandler) MarkMessageAsDeleted(c *gin.Context) {
	req := services.DeletionRequest{
		MessageID:  c.Param("messageId"),
		SenderID:   c.Param("senderId"),
		ReceiverID: c.Param("receiverId"),
		Kind:       models.DeletionKind(c.Param("type")),
	}
	if req.SenderID != c.GetString(middleware.ContextUserID) {
		c.Error(errors.NewAppError(http.StatusForbidden, "You can only delete messages for yourself"))
		return
	}

	if _, err := h.service.MarkMessageAsDeleted(c.Request.Context(), req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as deleted"})
}

// GetMessages handles GET /chat/messages/user/:receiverId. The conversation
// is resolved through the caller's chat list, so only participants can read
// it. Messages the caller deleted for themselves are left out.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserID)

	conversationID, err := h.messages.ConversationID(ctx, userID, c.Param("receiverId"))
	if stderrors.Is(err, cache.ErrMessageNotFound) {
		c.JSON(http.StatusOK, gin.H{"message": "User chat messages", "messages": []models.Message{}})
		return
	}
	if err != nil {
		c.Error(err)
		return
	}

	all, err := h.messages.GetChatMessagesFromCache(ctx, conversationID)
	if err != nil {
		c.Error(err)
		return
	}

	visible := make([]models.Message, 0, len(all))
	for _, m := range all {
		if m.IsDeletedFor(userID) && !m.DeletedForEveryone {
			continue
		}
		visible = append(visible, m)
	}
	c.JSON(http.StatusOK, gin.H{"message": "User chat messages", "messages": visible})
}
