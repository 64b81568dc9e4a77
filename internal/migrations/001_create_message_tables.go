package migrations

import (
	"gorm.io/gorm"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

func Migration001CreateMessageTables() Migration {
	return Migration{
		ID:   "001_create_message_tables",
		Name: "Create messages and message_reactions",
		Up: func(db *gorm.DB) error {
			return db.AutoMigrate(&models.MessageRecord{}, &models.MessageReaction{})
		},
	}
}
