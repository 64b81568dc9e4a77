package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Rayan1605/MainChatApplication/internal/handlers"
	"github.com/Rayan1605/MainChatApplication/internal/middleware"
)

// RegisterQueueRoutes mounts the job dashboard. It sits behind auth like the
// rest of the API.
func RegisterQueueRoutes(r gin.IRouter, h *handlers.QueueHandler) {
	queues := r.Group("/queues")
	queues.Use(middleware.AuthMiddleware())
	{
		queues.GET("", h.Overview)
		queues.GET("/:queue/:job/failed", h.Exhausted)
		queues.POST("/:queue/failed/:id/retry", h.Retry)
	}
}
