package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

// ErrMessageNotFound means the durable store has no row for the message yet.
// Workers return it so the queue retries: the message write may still be in
// flight.
var ErrMessageNotFound = errors.New("message not found in durable store")

// MessageStore is the durable side of message mutations.
type MessageStore interface {
	UpdateMessageReaction(ctx context.Context, messageID string, senderName string, kind models.ReactionKind, action models.ReactionAction) error
	MarkMessageAsDeleted(ctx context.Context, messageID primitive.ObjectID, kind models.DeletionKind) error
	Ping(ctx context.Context) error
}
