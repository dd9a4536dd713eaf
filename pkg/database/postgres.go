package database

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"jobtrail-backend/pkg/config"
)

// NewPostgresConnection opens the tracker database from the configured DSN.
func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not configured")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
