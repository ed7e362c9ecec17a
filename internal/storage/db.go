package storage

import (
	"fmt"

	"gigmarket/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormConfig is shared by every dialect so duplicate-key errors surface as
// gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns or reads.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Gig{},
		&models.Order{},
		&models.Message{},
		&models.Review{},
	)
}
