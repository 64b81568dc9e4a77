package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Rayan1605/MainChatApplication/internal/models"
	apperrors "github.com/Rayan1605/MainChatApplication/pkg/errors"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// ErrMessageNotFound is returned when a message or its conversation is not in
// the cache. The cache is never rehydrated from the durable store.
var ErrMessageNotFound = apperrors.NotFound("Message not found")

// ErrConflict means a mutation lost every optimistic retry.
var ErrConflict = errors.New("message cache: too many concurrent updates")

const maxTxRetries = 50

// MessageCache holds the live copy of every conversation in Redis.
//
//	messages:{conversationId}  hash  messageId -> message JSON
//	chatList:{userId}          hash  otherUserId -> conversationId
type MessageCache struct {
	rdb redis.UniversalClient
	log zerolog.Logger
}

func NewMessageCache(rdb redis.UniversalClient) *MessageCache {
	return &MessageCache{rdb: rdb, log: logger.Named("messageCache")}
}

func messagesKey(conversationID string) string { return "messages:" + conversationID }

func chatListKey(userID string) string { return "chatList:" + userID }

// AddChatMessageToCache stores msg and links both participants' chat lists to
// its conversation.
func (c *MessageCache) AddChatMessageToCache(ctx context.Context, msg *models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, messagesKey(msg.ConversationID), msg.ID, raw)
		pipe.HSet(ctx, chatListKey(msg.SenderID), msg.ReceiverID, msg.ConversationID)
		pipe.HSet(ctx, chatListKey(msg.ReceiverID), msg.SenderID, msg.ConversationID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache message %s: %w", msg.ID, err)
	}
	return nil
}

// GetChatMessagesFromCache returns a conversation's messages, oldest first.
func (c *MessageCache) GetChatMessagesFromCache(ctx context.Context, conversationID string) ([]models.Message, error) {
	entries, err := c.rdb.HGetAll(ctx, messagesKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(entries))
	for id, raw := range entries {
		var m models.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", id, err)
		}
		messages = append(messages, m)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (c *MessageCache) GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error) {
	raw, err := c.rdb.HGet(ctx, messagesKey(conversationID), messageID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", messageID, err)
	}
	return &m, nil
}

// ConversationID looks up the conversation between userID and otherUserID in
// userID's chat list.
func (c *MessageCache) ConversationID(ctx context.Context, userID, otherUserID string) (string, error) {
	id, err := c.rdb.HGet(ctx, chatListKey(userID), otherUserID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMessageNotFound
	}
	return id, err
}

// UpdateMessageReaction adds or removes username's reaction and returns the
// updated message.
func (c *MessageCache) UpdateMessageReaction(ctx context.Context, conversationID, messageID string, kind models.ReactionKind, username string, action models.ReactionAction) (*models.Message, error) {
	return c.mutate(ctx, conversationID, messageID, func(m *models.Message) {
		m.ApplyReaction(username, kind, action)
	})
}

// MarkMessageAsDeleted hides the message for senderID (the requester), or for
// both participants with DeleteForEveryone, and returns the updated message.
func (c *MessageCache) MarkMessageAsDeleted(ctx context.Context, senderID, receiverID, messageID string, kind models.DeletionKind) (*models.Message, error) {
	conversationID, err := c.ConversationID(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, conversationID, messageID, func(m *models.Message) {
		m.MarkDeleted(senderID, kind)
	})
}

// mutate applies fn to one message under WATCH so that concurrent writers on
// the same conversation retry instead of overwriting each other.
func (c *MessageCache) mutate(ctx context.Context, conversationID, messageID string, fn func(*models.Message)) (*models.Message, error) {
	key := messagesKey(conversationID)
	var updated models.Message

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, messageID).Result()
		if errors.Is(err, redis.Nil) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		var m models.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return fmt.Errorf("decode message %s: %w", messageID, err)
		}
		fn(&m)
		next, err := json.Marshal(&m)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, messageID, next)
			return nil
		})
		if err == nil {
			updated = m
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			c.log.Debug().Str("conversation_id", conversationID).Str("message_id", messageID).Int("attempt", i+1).Msg("Cache write conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, ErrConflict
}
