package migrations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := openDB(t)

	require.NoError(t, NewMigrator(db).Run())
	require.NoError(t, NewMigrator(db).Run())

	var count int64
	db.Model(&MigrationRecord{}).Count(&count)
	assert.Equal(t, int64(len(GetMigrations())), count)

	assert.True(t, db.Migrator().HasTable(&models.MessageRecord{}))
	assert.True(t, db.Migrator().HasTable(&models.MessageReaction{}))
	assert.True(t, db.Migrator().HasIndex(&models.MessageRecord{}, "idx_messages_conversation_created"))
}

func TestMigrator_MissingDependency(t *testing.T) {
	db := openDB(t)
	m := &Migrator{db: db, migrations: []Migration{{
		ID:        "010_needs_missing",
		DependsOn: []string{"009_never_ran"},
		Up:        func(*gorm.DB) error { return nil },
	}}}

	err := m.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "009_never_ran")
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")
	m := &Migrator{db: db, migrations: []Migration{{
		ID: "001_fails",
		Up: func(*gorm.DB) error { return boom },
	}}}

	require.ErrorIs(t, m.Run(), boom)

	var count int64
	db.Model(&MigrationRecord{}).Count(&count)
	assert.Zero(t, count)
}
