package database

import (
	"fmt"

	"github.com/gatherlab/gatherd/internal/common/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL creates a MySQL-backed Database.
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newGormDB(db)
}
