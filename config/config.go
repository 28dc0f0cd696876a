// Package config loads the server configuration from an optional file and
// the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full configuration surface of the server.
type Config struct {
	DBPath   string `yaml:"db_path" env:"DB_PATH" env-default:"tractorpos.db"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP   `yaml:"http"`
	Backup   Backup `yaml:"backup"`
}

// HTTP holds HTTP server options.
type HTTP struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:8080"`
	MaxImportBytes  int64         `yaml:"max_import_bytes" env:"MAX_IMPORT_BYTES" env-default:"10485760"`
	BackupRate      float64       `yaml:"backup_rate" env:"BACKUP_RATE_LIMIT" env-default:"2"`
	BackupBurst     int           `yaml:"backup_burst" env:"BACKUP_RATE_BURST" env-default:"5"`
}

// Backup holds the automatic backup options. An empty Dir disables them.
type Backup struct {
	Dir      string        `yaml:"dir" env:"BACKUP_DIR"`
	Interval time.Duration `yaml:"interval" env:"BACKUP_INTERVAL" env-default:"1h"`
}

// Load reads path (yaml, json, toml or env, chosen by extension) when it is
// not empty, then applies environment variables and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from environment: %w", err)
	}
	return &cfg, nil
}
