package config

// LoggerConfig represents the logger configuration
type LoggerConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	Output     string `yaml:"output"`      // stdout, file
	FilePath   string `yaml:"file_path"`   // path to log file when output is file
	MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
	MaxBackups int    `yaml:"max_backups"` // max number of backup files
	MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
	Compress   bool   `yaml:"compress"`    // whether to compress backup files
	Color      bool   `yaml:"color"`       // whether to use color in console output
	Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
	TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
}
