package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Rayan1605/MainChatApplication/internal/models"
	"github.com/Rayan1605/MainChatApplication/internal/realtime"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// Socket events on the chat channel.
const (
	EventMessageReaction = "message reaction"
	EventMessageRead     = "message read"
	EventChatList        = "chat list"
)

// MessageCache is the part of the hot cache the mutation service writes to.
type MessageCache interface {
	UpdateMessageReaction(ctx context.Context, conversationID, messageID string, kind models.ReactionKind, username string, action models.ReactionAction) (*models.Message, error)
	MarkMessageAsDeleted(ctx context.Context, senderID, receiverID, messageID string, kind models.DeletionKind) (*models.Message, error)
}

// ChatJobQueue hands persistence work to the chat queue.
type ChatJobQueue interface {
	AddChatJob(ctx context.Context, name string, data interface{}) error
}

type ReactionRequest struct {
	ConversationID string                `json:"conversationId" validate:"required"`
	MessageID      string                `json:"messageId" validate:"required,objectid"`
	Reaction       models.ReactionKind   `json:"reaction" validate:"required,oneof=like love happy wow sad angry"`
	Type           models.ReactionAction `json:"type" validate:"required,oneof=add remove"`
	// Username of the reacting user, taken from the auth token
	Username string `json:"-" validate:"required"`
}

type DeletionRequest struct {
	MessageID  string              `validate:"required,objectid"`
	SenderID   string              `validate:"required"`
	ReceiverID string              `validate:"required"`
	Kind       models.DeletionKind `validate:"required,oneof=deleteForMe deleteForEveryone"`
}

// ChatService applies message mutations: cache first, then a realtime
// broadcast, then a job that writes the change to the durable store.
type ChatService struct {
	cache    MessageCache
	chat     realtime.Emitter
	queue    ChatJobQueue
	validate *validator.Validate
	log      zerolog.Logger
}

func NewChatService(cache MessageCache, chat realtime.Emitter, queue ChatJobQueue) *ChatService {
	return &ChatService{
		cache:    cache,
		chat:     chat,
		queue:    queue,
		validate: newValidator(),
		log:      logger.Named("chatService"),
	}
}

// Reaction adds or removes a reaction and returns the message as broadcast.
func (s *ChatService) Reaction(ctx context.Context, req ReactionRequest) (*models.Message, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	msg, err := s.cache.UpdateMessageReaction(ctx, req.ConversationID, req.MessageID, req.Reaction, req.Username, req.Type)
	if err != nil {
		return nil, err
	}

	// Later steps run even if the client hangs up.
	ctx = context.WithoutCancel(ctx)

	s.broadcast(EventMessageReaction, msg)
	s.enqueue(ctx, models.JobUpdateMessageReaction, models.ReactionJob{
		MessageID:    req.MessageID,
		SenderName:   req.Username,
		ReactionKind: req.Reaction,
		Action:       req.Type,
	})
	return msg, nil
}

// MarkMessageAsDeleted hides a message for the sender or for both
// participants and returns the message as broadcast.
func (s *ChatService) MarkMessageAsDeleted(ctx context.Context, req DeletionRequest) (*models.Message, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	messageID, err := primitive.ObjectIDFromHex(req.MessageID)
	if err != nil {
		return nil, validationError(err)
	}

	msg, err := s.cache.MarkMessageAsDeleted(ctx, req.SenderID, req.ReceiverID, req.MessageID, req.Kind)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	s.broadcast(EventMessageRead, msg)
	s.broadcast(EventChatList, msg)
	s.enqueue(ctx, models.JobMarkMessageAsDeletedInDB, models.DeletionJob{
		MessageID: messageID,
		Kind:      req.Kind,
	})
	return msg, nil
}

func (s *ChatService) broadcast(event string, msg *models.Message) {
	if err := s.chat.Emit(event, msg); err != nil {
		s.log.Warn().Err(err).Str("event", event).Str("message_id", msg.ID).Msg("Broadcast failed")
	}
}

// enqueue logs queue errors instead of returning them; the durable store
// then lags the cache until the mutation is replayed.
func (s *ChatService) enqueue(ctx context.Context, name string, data interface{}) {
	if err := s.queue.AddChatJob(ctx, name, data); err != nil {
		s.log.Error().Err(err).Str("job", name).Interface("data", data).Msg("Failed to enqueue chat job")
	}
}
