package database

import (
	"fmt"

	"github.com/gatherlab/gatherd/internal/common/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgres creates a PostgreSQL-backed Database.
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newGormDB(db)
}
