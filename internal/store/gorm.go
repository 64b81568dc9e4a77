package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

// GormStore persists messages in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) UpdateMessageReaction(ctx context.Context, messageID string, senderName string, kind models.ReactionKind, action models.ReactionAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := messageExists(tx, messageID); err != nil {
			return err
		}

		if action == models.ReactionRemove {
			return tx.Where("message_id = ? AND username = ?", messageID, senderName).
				Delete(&models.MessageReaction{}).Error
		}

		reaction := models.MessageReaction{MessageID: messageID, Username: senderName, Kind: kind}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).Create(&reaction).Error
	})
}

func (s *GormStore) MarkMessageAsDeleted(ctx context.Context, messageID primitive.ObjectID, kind models.DeletionKind) error {
	updates := map[string]interface{}{"delete_for_me": true}
	if kind == models.DeleteForEveryone {
		updates["deleted_for_everyone"] = true
	}

	res := s.db.WithContext(ctx).Model(&models.MessageRecord{}).
		Where("id = ?", messageID.Hex()).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark %s deleted: %w", messageID.Hex(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID.Hex())
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func messageExists(tx *gorm.DB, messageID string) error {
	var record models.MessageRecord
	err := tx.Select("id").Where("id = ?", messageID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	return err
}
