package workers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Rayan1605/MainChatApplication/internal/models"
	"github.com/Rayan1605/MainChatApplication/internal/queue"
	"github.com/Rayan1605/MainChatApplication/internal/store"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// ChatWorker lands chat mutations in the durable store. It never reads or
// writes the cache. Any returned error fails the attempt and the queue retries.
type ChatWorker struct {
	store store.MessageStore
	log   zerolog.Logger
}

var _ queue.ChatProcessor = (*ChatWorker)(nil)

func NewChatWorker(s store.MessageStore) *ChatWorker {
	return &ChatWorker{store: s, log: logger.Named("chatWorker")}
}

func (w *ChatWorker) AddMessageReactionToDB(ctx context.Context, job *queue.Job) error {
	var data models.ReactionJob
	if err := job.Decode(&data); err != nil {
		return err
	}

	if err := w.store.UpdateMessageReaction(ctx, data.MessageID, data.SenderName, data.ReactionKind, data.Action); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID).Str("message_id", data.MessageID).Msg("Failed to persist message reaction")
		return fmt.Errorf("persist reaction: %w", err)
	}
	w.log.Debug().Str("job_id", job.ID).Str("message_id", data.MessageID).Msg("Message reaction persisted")
	return nil
}

func (w *ChatWorker) MarkMessageAsDeletedInDB(ctx context.Context, job *queue.Job) error {
	var data models.DeletionJob
	if err := job.Decode(&data); err != nil {
		return err
	}

	if err := w.store.MarkMessageAsDeleted(ctx, data.MessageID, data.Kind); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID).Str("message_id", data.MessageID.Hex()).Msg("Failed to persist message deletion")
		return fmt.Errorf("persist deletion: %w", err)
	}
	w.log.Debug().Str("job_id", job.ID).Str("message_id", data.MessageID.Hex()).Msg("Message deletion persisted")
	return nil
}
