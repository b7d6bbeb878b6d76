package database

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"portal-service/internal/config"
	"portal-service/internal/models"
)

func NewPostgresConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.InventoryItem{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
		&models.ChatReadReceipt{},
		&models.ChatFile{},
	)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			slog.Warn("Schema objects already exist, continuing", "error", err)
		} else {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("Postgres connection established")
	return db, nil
}
