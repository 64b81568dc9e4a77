package migrations

import (
	"gorm.io/gorm"
)

// Migration002AddConversationIndex covers history reads:
// WHERE conversation_id = ? ORDER BY created_at
func Migration002AddConversationIndex() Migration {
	return Migration{
		ID:        "002_add_conversation_index",
		Name:      "Index messages by conversation and time",
		DependsOn: []string{"001_create_message_tables"},
		Up: func(db *gorm.DB) error {
			return db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at)`).Error
		},
	}
}
