package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Rayan1605/MainChatApplication/internal/handlers"
	"github.com/Rayan1605/MainChatApplication/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler, limiter *middleware.IPRateLimiter) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(), middleware.RateLimitMiddleware(limiter))
	{
		chat.GET("/messages/user/:receiverId", h.GetMessages)
		chat.PUT("/message/reaction", h.Reaction)
		chat.PUT("/message/mark-as-deleted/:messageId/:senderId/:receiverId/:type", h.MarkMessageAsDeleted)
	}
}
