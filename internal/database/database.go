package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/cleanlists/api/internal/config"
	"github.com/cleanlists/api/internal/model"
)

// Connect opens the postgres connection.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
}

// Migrate creates or updates the schema for all persisted entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.CleanPlaylistJob{},
		&model.TrackMapping{},
		&model.SyncConfig{},
		&model.SyncHistory{},
		&model.MusicToken{},
		&model.WebhookRetry{},
		&model.ProcessedWebhookEvent{},
		&model.UserSubscription{},
	)
}
