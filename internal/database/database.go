package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Rayan1605/MainChatApplication/internal/migrations"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// ConnectPostgres opens the durable store used when DURABLE_STORE=postgres
// and migrates the message tables.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info().Msg("Connected to PostgreSQL with connection pooling (max: 25, idle: 10)")
	return db, nil
}

// Migrate applies pending schema migrations.
func Migrate(db *gorm.DB) error {
	return migrations.NewMigrator(db).Run()
}
