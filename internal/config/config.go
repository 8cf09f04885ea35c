// Package config loads the bot configuration from an optional YAML file,
// MATCHBOT_* environment variables and built-in defaults.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the complete application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Pending   PendingConfig   `mapstructure:"pending"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig selects the log level and format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and contacts.
type TelegramConfig struct {
	Token   string `mapstructure:"token" validate:"required"`
	AdminID int64  `mapstructure:"admin_id" validate:"gte=0"`
	// SupportUsername is shown by /help; empty disables the contact button.
	SupportUsername string `mapstructure:"support_username"`
	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// MatchingConfig tunes candidate selection and the decision limiter.
type MatchingConfig struct {
	Window          time.Duration `mapstructure:"window" validate:"gt=0"`
	MaxDecisions    int           `mapstructure:"max_decisions" validate:"gt=0"`
	DefaultLanguage string        `mapstructure:"default_language" validate:"oneof=fr en"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	MaxResults        int           `mapstructure:"max_results" validate:"gte=1,lte=10"`
	ReverseLanguage   string        `mapstructure:"reverse_language" validate:"oneof=fr en"`
	// MaxAttempts bounds retries of one lookup; BreakerFailures consecutive
	// failed lookups stop all calls for BreakerCooldown.
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1,lte=5"`
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"gt=0"`
}

// PendingConfig selects where interest notices wait for their recipient.
type PendingConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=memory redis badger"`
	RedisURL   string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	BadgerPath string `mapstructure:"badger_path" validate:"required_if=Backend badger"`
}

// MetricsConfig exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task on a cron schedule (seconds field first).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
