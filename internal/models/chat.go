package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Job names handled by the chat queue.
const (
	JobUpdateMessageReaction    = "updateMessageReaction"
	JobMarkMessageAsDeletedInDB = "markMessageAsDeletedInDB"
)

// ReactionJob is the payload of an updateMessageReaction job.
type ReactionJob struct {
	MessageID    string         `json:"messageId"`
	SenderName   string         `json:"senderName"`
	ReactionKind ReactionKind   `json:"reactionKind"`
	Action       ReactionAction `json:"action"`
}

// DeletionJob is the payload of a markMessageAsDeletedInDB job. MessageID is
// in durable-store form.
type DeletionJob struct {
	MessageID primitive.ObjectID `json:"messageId"`
	Kind      DeletionKind       `json:"kind"`
}

// MessageRecord is the relational form of a persisted message, used when the
// durable store is PostgreSQL.
type MessageRecord struct {
	// Hex ObjectID, shared with the cache and the socket payloads
	ID             string `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string `gorm:"index;type:text;not null" json:"conversationId"`
	SenderID       string `gorm:"index;type:text;not null" json:"senderId"`
	ReceiverID     string `gorm:"index;type:text;not null" json:"receiverId"`
	Body           string `gorm:"type:text" json:"body"`

	DeleteForMe        bool `gorm:"default:false" json:"deleteForMe"`
	DeletedForEveryone bool `gorm:"default:false" json:"deletedForEveryone"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions"`
}

func (MessageRecord) TableName() string { return "messages" }

// MessageReaction stores one user's reaction on a message.
// Unique on (message_id, username): one reaction per user per message.
type MessageReaction struct {
	ID        uint         `gorm:"primaryKey" json:"-"`
	MessageID string       `gorm:"type:text;not null;uniqueIndex:idx_reaction_message_user" json:"messageId"`
	Username  string       `gorm:"type:text;not null;uniqueIndex:idx_reaction_message_user" json:"senderName"`
	Kind      ReactionKind `gorm:"type:text;not null" json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
