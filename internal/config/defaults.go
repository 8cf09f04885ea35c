package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultDatabasePath = "matchbot.db"

	DefaultMatchingWindow       = 24 * time.Hour
	DefaultMatchingMaxDecisions = 15
	DefaultLanguage             = "fr"

	DefaultGeocoderBaseURL           = "https://nominatim.openstreetmap.org"
	DefaultGeocoderUserAgent         = "matchbot/1.0"
	DefaultGeocoderTimeout           = 10 * time.Second
	DefaultGeocoderRequestsPerSecond = 1.0
	DefaultGeocoderMaxResults        = 5
	DefaultGeocoderMaxAttempts       = 2
	DefaultGeocoderBreakerFailures   = 5
	DefaultGeocoderBreakerCooldown   = 30 * time.Second

	DefaultPendingBackend   = "memory"
	DefaultPendingKeyPrefix = "matchbot:pending:"

	DefaultMetricsAddress = ":9090"

	// Cron schedules with a leading seconds field.
	DefaultSQLMaintenanceSchedule = "0 30 4 * * *"
	DefaultDailyStatsSchedule     = "0 0 9 * * *"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	// Registered so that MATCHBOT_TELEGRAM_TOKEN is picked up by Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_id", 0)
	v.SetDefault("telegram.support_username", "")

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("matching.window", DefaultMatchingWindow)
	v.SetDefault("matching.max_decisions", DefaultMatchingMaxDecisions)
	v.SetDefault("matching.default_language", DefaultLanguage)

	v.SetDefault("geocoder.base_url", DefaultGeocoderBaseURL)
	v.SetDefault("geocoder.user_agent", DefaultGeocoderUserAgent)
	v.SetDefault("geocoder.timeout", DefaultGeocoderTimeout)
	v.SetDefault("geocoder.requests_per_second", DefaultGeocoderRequestsPerSecond)
	v.SetDefault("geocoder.max_results", DefaultGeocoderMaxResults)
	v.SetDefault("geocoder.reverse_language", DefaultLanguage)
	v.SetDefault("geocoder.max_attempts", DefaultGeocoderMaxAttempts)
	v.SetDefault("geocoder.breaker_failures", DefaultGeocoderBreakerFailures)
	v.SetDefault("geocoder.breaker_cooldown", DefaultGeocoderBreakerCooldown)

	v.SetDefault("pending.backend", DefaultPendingBackend)
	v.SetDefault("pending.redis_url", "")
	v.SetDefault("pending.key_prefix", DefaultPendingKeyPrefix)
	v.SetDefault("pending.badger_path", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", DefaultMetricsAddress)

	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{"enabled": true, "schedule": DefaultSQLMaintenanceSchedule},
		"daily_stats":     map[string]any{"enabled": false, "schedule": DefaultDailyStatsSchedule},
	})
}
