package config

import (
	"os"
	"regexp"
	"time"

	"github.com/gatherlab/gatherd/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the top-level gatherd configuration.
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		Session  SessionConfig  `yaml:"session"`
		Database DatabaseConfig `yaml:"database"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
	}

	// ServerConfig represents the TCP listener configuration.
	ServerConfig struct {
		Addr           string `yaml:"addr"`            // listen address, e.g. ":8888"
		MaxConnections int    `yaml:"max_connections"` // maximum concurrent client connections
		MaxFrameBytes  int    `yaml:"max_frame_bytes"` // maximum size of a single request frame
		SendQueueSize  int    `yaml:"send_queue_size"` // per-connection outbound queue depth
		PID            string `yaml:"pid"`             // pid file path, empty to disable
	}

	// SessionConfig represents the session store configuration.
	SessionConfig struct {
		Type           string             `yaml:"type"`            // "memory" or "redis"
		Capacity       int                `yaml:"capacity"`        // maximum concurrent sessions
		IdleTimeout    time.Duration      `yaml:"idle_timeout"`    // idle time before a session expires
		EvictionPolicy string             `yaml:"eviction_policy"` // "reject" or "evict_oldest" when full
		SweepInterval  time.Duration      `yaml:"sweep_interval"`  // background expiry sweep period, 0 to disable
		Redis          SessionRedisConfig `yaml:"redis"`
	}

	// SessionRedisConfig represents the Redis configuration for session storage.
	SessionRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// MetricsConfig represents the Prometheus metrics configuration.
	MetricsConfig struct {
		Addr      string    `yaml:"addr"`      // HTTP listen address for /metrics, empty to disable
		Namespace string    `yaml:"namespace"` // metric namespace, default "gatherd"
		Buckets   []float64 `yaml:"buckets"`   // histogram buckets in seconds
	}
)

// LoadConfig loads configuration from a YAML file with environment variable support.
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8888"
	}
	if cfg.Server.MaxConnections <= 0 {
		cfg.Server.MaxConnections = 100
	}
	if cfg.Server.MaxFrameBytes <= 0 {
		cfg.Server.MaxFrameBytes = 4096
	}
	if cfg.Server.SendQueueSize <= 0 {
		cfg.Server.SendQueueSize = 64
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Session.Capacity <= 0 {
		cfg.Session.Capacity = 1000
	}
	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = time.Hour
	}
	if cfg.Session.EvictionPolicy == "" {
		cfg.Session.EvictionPolicy = "reject"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "gatherd"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
