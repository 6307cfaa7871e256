package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Validate checks a loaded configuration for values the server cannot run with.
func Validate(cfg *Config) error {
	switch cfg.Session.Type {
	case "memory":
	case "redis":
		if cfg.Session.Redis.Addr == "" {
			return &ValidationError{Field: "session.redis.addr", Message: "required when session.type is redis"}
		}
	default:
		return &ValidationError{Field: "session.type", Message: fmt.Sprintf("unsupported type %q", cfg.Session.Type)}
	}

	switch cfg.Session.EvictionPolicy {
	case "reject", "evict_oldest":
	default:
		return &ValidationError{
			Field:   "session.eviction_policy",
			Message: fmt.Sprintf("must be %q or %q", "reject", "evict_oldest"),
		}
	}

	switch cfg.Database.Type {
	case "", "memory":
	case "postgres", "mysql":
		if cfg.Database.Host == "" || cfg.Database.DBName == "" {
			return &ValidationError{Field: "database", Message: "host and dbname are required"}
		}
	case "sqlite":
		if cfg.Database.DBName == "" {
			return &ValidationError{Field: "database.dbname", Message: "file path is required for sqlite"}
		}
	default:
		return &ValidationError{Field: "database.type", Message: fmt.Sprintf("unsupported type %q", cfg.Database.Type)}
	}

	if cfg.Logger.Output == "file" && strings.TrimSpace(cfg.Logger.FilePath) == "" {
		return &ValidationError{Field: "logger.file_path", Message: "required when logger.output is file"}
	}

	return nil
}
