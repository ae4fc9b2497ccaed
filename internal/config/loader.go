package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/journalize/internal/db"
	"github.com/rpattn/journalize/internal/mapping"
)

// MigrationConfig tunes the reconstruction pipeline.
type MigrationConfig struct {
	Workers int
	// TimestampResolution is the smallest increment the target's interval
	// storage is known to persist. Collision resolution never assumes finer
	// precision than this; confirm it against the real target before
	// lowering it below one second.
	TimestampResolution  time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxElapsedTime  time.Duration
}

// APIConfig configures the progress/report endpoint.
type APIConfig struct {
	Enabled        bool
	Addr           string
	AllowedOrigins []string
}

// SourceConfig locates the tracker export to migrate.
type SourceConfig struct {
	ExportPath string
}

// Config is the full application configuration.
type Config struct {
	Database  db.Config
	Migration MigrationConfig
	API       APIConfig
	Source    SourceConfig
	Mapping   map[string]mapping.FieldSpec
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Migration: MigrationConfig{
			Workers:              4,
			TimestampResolution:  time.Second,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     10 * time.Second,
			RetryMaxElapsedTime:  2 * time.Minute,
		},
		API: APIConfig{
			Enabled:        true,
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Source: SourceConfig{ExportPath: "./export"},
	}
}

// Load reads config.yaml from configPath, with JOURNALIZE_-prefixed
// environment overrides. A missing file is not an error; defaults and env
// vars apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("JOURNALIZE")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("migration.workers")
	v.BindEnv("source.export_path")
	v.BindEnv("api.addr")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("migration.workers") {
		cfg.Migration.Workers = v.GetInt("migration.workers")
	}
	if v.IsSet("migration.timestamp_resolution") {
		cfg.Migration.TimestampResolution = v.GetDuration("migration.timestamp_resolution")
	}
	if v.IsSet("migration.retry_initial_interval") {
		cfg.Migration.RetryInitialInterval = v.GetDuration("migration.retry_initial_interval")
	}
	if v.IsSet("migration.retry_max_interval") {
		cfg.Migration.RetryMaxInterval = v.GetDuration("migration.retry_max_interval")
	}
	if v.IsSet("migration.retry_max_elapsed_time") {
		cfg.Migration.RetryMaxElapsedTime = v.GetDuration("migration.retry_max_elapsed_time")
	}

	if v.IsSet("api.enabled") {
		cfg.API.Enabled = v.GetBool("api.enabled")
	}
	if v.IsSet("api.addr") {
		cfg.API.Addr = v.GetString("api.addr")
	}
	if v.IsSet("api.allowed_origins") {
		cfg.API.AllowedOrigins = v.GetStringSlice("api.allowed_origins")
	}

	if v.IsSet("source.export_path") {
		cfg.Source.ExportPath = v.GetString("source.export_path")
	}

	if v.IsSet("mapping") {
		specs := make(map[string]mapping.FieldSpec)
		if err := v.UnmarshalKey("mapping", &specs); err != nil {
			return cfg, fmt.Errorf("failed to parse mapping config: %w", err)
		}
		cfg.Mapping = specs
	}

	if cfg.Migration.Workers < 1 {
		cfg.Migration.Workers = 1
	}

	return cfg, nil
}
