package database

import (
	"fmt"

	"github.com/gatherlab/gatherd/internal/common/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLite creates a SQLite-backed Database.
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	db, err := gorm.Open(sqlite.Open(cfg.GetDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newGormDB(db)
}
