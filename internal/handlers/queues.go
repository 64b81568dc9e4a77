package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rayan1605/MainChatApplication/internal/queue"
	"github.com/Rayan1605/MainChatApplication/pkg/errors"
)

// QueueHandler is the job dashboard: counts for every registered queue,
// exhausted jobs, and manual replay.
type QueueHandler struct {
	registry *queue.Registry
}

func NewQueueHandler(registry *queue.Registry) *QueueHandler {
	return &QueueHandler{registry: registry}
}

// Overview handles GET /queues.
func (h *QueueHandler) Overview(c *gin.Context) {
	queues, err := h.registry.Overview(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

// Exhausted handles GET /queues/:queue/:job/failed.
func (h *QueueHandler) Exhausted(c *gin.Context) {
	q, ok := h.registry.Get(c.Param("queue"))
	if !ok {
		c.Error(errors.NotFound("Queue not found"))
		return
	}

	jobs, err := q.Exhausted(c.Request.Context(), c.Param("job"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Retry handles POST /queues/:queue/failed/:id/retry.
func (h *QueueHandler) Retry(c *gin.Context) {
	q, ok := h.registry.Get(c.Param("queue"))
	if !ok {
		c.Error(errors.NotFound("Queue not found"))
		return
	}

	job, err := q.Retry(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, queue.ErrJobNotFound) {
		c.Error(errors.NotFound("Job not found or not exhausted"))
		return
	}
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job requeued", "job": job})
}
