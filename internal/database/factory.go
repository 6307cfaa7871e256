package database

import (
	"fmt"

	"github.com/gatherlab/gatherd/internal/common/config"
)

// NewDatabase creates a database based on configuration.
func NewDatabase(cfg *config.DatabaseConfig) (Database, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgres(cfg)
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite":
		return NewSQLite(cfg)
	case "", "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
