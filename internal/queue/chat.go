package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

// ChatProcessor persists chat mutations that were already applied to the cache.
type ChatProcessor interface {
	AddMessageReactionToDB(ctx context.Context, job *Job) error
	MarkMessageAsDeletedInDB(ctx context.Context, job *Job) error
}

// DefaultChatConcurrency is the number of workers per chat job name.
const DefaultChatConcurrency = 5

// ChatQueue is the chat feature queue.
type ChatQueue struct {
	*Queue
}

// NewChatQueue creates the chat queue and binds worker to both persistence
// jobs. A concurrency of zero means DefaultChatConcurrency.
func NewChatQueue(rdb redis.UniversalClient, registry *Registry, opts Options, worker ChatProcessor, concurrency int) *ChatQueue {
	if concurrency <= 0 {
		concurrency = DefaultChatConcurrency
	}
	q := New(QueueChat, rdb, registry, opts)
	q.Process(models.JobUpdateMessageReaction, concurrency, worker.AddMessageReactionToDB)
	q.Process(models.JobMarkMessageAsDeletedInDB, concurrency, worker.MarkMessageAsDeletedInDB)
	return &ChatQueue{Queue: q}
}

// AddChatJob enqueues a chat persistence job.
func (c *ChatQueue) AddChatJob(ctx context.Context, name string, data interface{}) error {
	_, err := c.AddJob(ctx, name, data)
	return err
}
