package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything /health can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health reports Redis and durable store status. A failed check reports
// "degraded" with a 200.
func Health(redis, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		redisStatus := "ok"
		if err := redis.Ping(ctx); err != nil {
			redisStatus = "error"
		}
		storeStatus := "ok"
		if err := store.Ping(ctx); err != nil {
			storeStatus = "error"
		}

		status := "ok"
		if redisStatus != "ok" || storeStatus != "ok" {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"message": "Chat backend is running",
			"checks": gin.H{
				"redis": redisStatus,
				"store": storeStatus,
			},
		})
	}
}
