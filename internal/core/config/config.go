// internal/core/config/config.go

// Package config provides configuration management for the Guardhouse daemon.
package config

import (
	"os"
	"time"
)

// ModerationConfig holds configuration for the moderation daemon: database,
// transport subjects, cache and cooldown tuning, and the metrics listener.
type ModerationConfig struct {
	DatabaseURL string

	NATSURL             string
	EventSubject        string
	QueueGroup          string
	ActionSubjectPrefix string
	DirectorySubject    string
	DirectoryTimeout    time.Duration

	RedisAddr           string
	InvalidationChannel string

	CacheTTL              time.Duration
	CooldownSweepInterval time.Duration
	CooldownRetention     time.Duration

	MetricsAddr string
}

// DefaultModerationConfig returns configuration with default values.
func DefaultModerationConfig() *ModerationConfig {
	return &ModerationConfig{
		DatabaseURL:           "sqlite://guardhouse.db",
		NATSURL:               "nats://127.0.0.1:4222",
		EventSubject:          "chat.events.messages",
		QueueGroup:            "guardhouse",
		ActionSubjectPrefix:   "chat.actions",
		DirectorySubject:      "chat.directory.lookup",
		DirectoryTimeout:      2 * time.Second,
		RedisAddr:             "",
		InvalidationChannel:   "guardhouse:invalidate",
		CacheTTL:              60 * time.Second,
		CooldownSweepInterval: 5 * time.Minute,
		CooldownRetention:     time.Hour,
		MetricsAddr:           ":9124",
	}
}

// RedisPassword reads the Redis password from the environment. Secrets are
// environment-only and never appear in config files.
func RedisPassword() string {
	return os.Getenv("GH_REDIS_PASSWORD")
}
