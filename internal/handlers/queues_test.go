package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rayan1605/MainChatApplication/internal/middleware"
	"github.com/Rayan1605/MainChatApplication/internal/queue"
)

func setupQueueRouter(t *testing.T) (*gin.Engine, *queue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	reg := queue.NewRegistry()
	q := queue.New(queue.QueueChat, rdb, reg, queue.Options{Attempts: 1, PromoteInterval: 10 * time.Millisecond})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandlerMiddleware())
	h := NewQueueHandler(reg)
	r.GET("/queues", h.Overview)
	r.GET("/queues/:queue/:job/failed", h.Exhausted)
	r.POST("/queues/:queue/failed/:id/retry", h.Retry)
	return r, q
}

func TestQueueOverview(t *testing.T) {
	r, q := setupQueueRouter(t)
	_, err := q.AddJob(context.Background(), "updateMessageReaction", map[string]string{"messageId": "m1"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queues", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Queues []queue.QueueInfo `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Queues, 1)
	assert.Equal(t, "chat", resp.Queues[0].Name)
	assert.Equal(t, int64(1), resp.Queues[0].Jobs["updateMessageReaction"].Waiting)
}

func TestQueueExhaustedAndRetry(t *testing.T) {
	r, q := setupQueueRouter(t)
	exhausted := make(chan string, 1)
	q.Process("markMessageAsDeletedInDB", 1, func(ctx context.Context, job *queue.Job) error {
		return errors.New("store down")
	})
	require.NoError(t, q.Start(context.Background()))

	job, err := q.AddJob(context.Background(), "markMessageAsDeletedInDB", map[string]string{"kind": "deleteForMe"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		jobs, err := q.Exhausted(context.Background(), "markMessageAsDeletedInDB")
		if err == nil && len(jobs) == 1 {
			exhausted <- jobs[0].ID
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	q.Close()
	assert.Equal(t, job.ID, <-exhausted)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queues/chat/markMessageAsDeletedInDB/failed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), job.ID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queues/chat/failed/"+job.ID+"/retry", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queues/chat/failed/"+job.ID+"/retry", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueRoutes_UnknownQueue(t *testing.T) {
	r, _ := setupQueueRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queues/billing/charge/failed", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
