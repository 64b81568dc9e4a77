package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyReaction(t *testing.T) {
	m := &Message{ID: "m1"}

	m.ApplyReaction("alice", ReactionLove, ReactionAdd)
	assert.Equal(t, ReactionLove, m.Reactions["alice"])

	// a second add replaces the first
	m.ApplyReaction("alice", ReactionSad, ReactionAdd)
	assert.Equal(t, ReactionSad, m.Reactions["alice"])
	assert.Len(t, m.Reactions, 1)

	m.ApplyReaction("bob", ReactionLike, ReactionAdd)
	m.ApplyReaction("alice", ReactionSad, ReactionRemove)
	_, ok := m.Reactions["alice"]
	assert.False(t, ok)
	assert.Equal(t, ReactionLike, m.Reactions["bob"])

	// removing a reaction that does not exist is a no-op
	m.ApplyReaction("carol", ReactionWow, ReactionRemove)
	assert.Len(t, m.Reactions, 1)
}

func TestMarkDeleted_ForMe(t *testing.T) {
	m := &Message{ID: "m1", Body: "hello"}

	m.MarkDeleted("u1", DeleteForMe)
	m.MarkDeleted("u1", DeleteForMe)

	assert.Equal(t, []string{"u1"}, m.DeletedForUserIDs)
	assert.False(t, m.DeletedForEveryone)
	assert.Equal(t, "hello", m.Body)
	assert.True(t, m.IsDeletedFor("u1"))
	assert.False(t, m.IsDeletedFor("u2"))
}

func TestMarkDeleted_ForEveryoneIsTerminal(t *testing.T) {
	m := &Message{ID: "m1", Body: "hello"}

	m.MarkDeleted("u1", DeleteForEveryone)
	assert.True(t, m.DeletedForEveryone)
	assert.Empty(t, m.Body)

	m.MarkDeleted("u2", DeleteForMe)
	assert.True(t, m.DeletedForEveryone)
	assert.Equal(t, []string{"u1", "u2"}, m.DeletedForUserIDs)
}
