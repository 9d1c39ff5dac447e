// internal/core/config/viper.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ModerationConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultModerationConfig
	v.SetDefault("database.url", "sqlite://guardhouse.db")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.event_subject", "chat.events.messages")
	v.SetDefault("nats.queue_group", "guardhouse")
	v.SetDefault("nats.action_subject_prefix", "chat.actions")
	v.SetDefault("nats.directory_subject", "chat.directory.lookup")
	v.SetDefault("nats.directory_timeout", "2s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.invalidation_channel", "guardhouse:invalidate")
	v.SetDefault("engine.cache_ttl", "60s")
	v.SetDefault("engine.cooldown_sweep_interval", "5m")
	v.SetDefault("engine.cooldown_retention", "1h")
	v.SetDefault("metrics.addr", ":9124")

	// Bind environment variables with GH_ prefix
	v.SetEnvPrefix("GH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject secrets in config files
	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ModerationConfig{
		DatabaseURL:           v.GetString("database.url"),
		NATSURL:               v.GetString("nats.url"),
		EventSubject:          v.GetString("nats.event_subject"),
		QueueGroup:            v.GetString("nats.queue_group"),
		ActionSubjectPrefix:   v.GetString("nats.action_subject_prefix"),
		DirectorySubject:      v.GetString("nats.directory_subject"),
		DirectoryTimeout:      v.GetDuration("nats.directory_timeout"),
		RedisAddr:             v.GetString("redis.addr"),
		InvalidationChannel:   v.GetString("redis.invalidation_channel"),
		CacheTTL:              v.GetDuration("engine.cache_ttl"),
		CooldownSweepInterval: v.GetDuration("engine.cooldown_sweep_interval"),
		CooldownRetention:     v.GetDuration("engine.cooldown_retention"),
		MetricsAddr:           v.GetString("metrics.addr"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks required endpoints and positive tuning values.
func validateConfig(cfg *ModerationConfig) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if cfg.NATSURL == "" {
		return fmt.Errorf("nats.url must not be empty")
	}
	if cfg.EventSubject == "" {
		return fmt.Errorf("nats.event_subject must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be positive, got %v", cfg.CacheTTL)
	}
	if cfg.CooldownSweepInterval <= 0 {
		return fmt.Errorf("engine.cooldown_sweep_interval must be positive, got %v", cfg.CooldownSweepInterval)
	}
	if cfg.CooldownRetention <= 0 {
		return fmt.Errorf("engine.cooldown_retention must be positive, got %v", cfg.CooldownRetention)
	}
	if cfg.DirectoryTimeout <= 0 {
		return fmt.Errorf("nats.directory_timeout must be positive, got %v", cfg.DirectoryTimeout)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("redis.password") || v.IsSet("database.password") {
		return fmt.Errorf("passwords not allowed in config files (use GH_REDIS_PASSWORD environment variable)")
	}
	return nil
}
