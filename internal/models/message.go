package models

import (
	"sort"
	"time"
)

type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionHappy ReactionKind = "happy"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"
)

type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

type DeletionKind string

const (
	DeleteForMe       DeletionKind = "deleteForMe"
	DeleteForEveryone DeletionKind = "deleteForEveryone"
)

// Message is the live view of a chat message as held in the hot cache and
// pushed to socket clients.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	SenderUsername string    `json:"senderUsername,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`

	// username -> reaction; one active reaction per username
	Reactions map[string]ReactionKind `json:"reactions"`

	DeletedForUserIDs  []string `json:"deletedForUserIds"`
	DeletedForEveryone bool     `json:"deletedForEveryone"`
}

// ApplyReaction sets or clears username's reaction. Adding replaces any
// reaction the user already had on the message.
func (m *Message) ApplyReaction(username string, kind ReactionKind, action ReactionAction) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]ReactionKind)
	}
	switch action {
	case ReactionAdd:
		m.Reactions[username] = kind
	case ReactionRemove:
		delete(m.Reactions, username)
	}
}

// MarkDeleted hides the message for requesterID, and for both participants
// when kind is DeleteForEveryone. DeletedForEveryone never goes back to false.
func (m *Message) MarkDeleted(requesterID string, kind DeletionKind) {
	if !m.IsDeletedFor(requesterID) {
		m.DeletedForUserIDs = append(m.DeletedForUserIDs, requesterID)
		sort.Strings(m.DeletedForUserIDs)
	}
	if kind == DeleteForEveryone {
		m.DeletedForEveryone = true
	}
	if m.DeletedForEveryone {
		m.Body = ""
	}
}

func (m *Message) IsDeletedFor(userID string) bool {
	for _, id := range m.DeletedForUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
