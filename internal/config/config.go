package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Timer   TimerConfig   `mapstructure:"timer"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	API     APIConfig     `mapstructure:"api"`
}

// ServerConfig defines listener addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TimerConfig defines quota enforcement settings
type TimerConfig struct {
	// Timezone is the single household timezone. The weekday/weekend
	// boundary and "today" depend entirely on it.
	Timezone           string `mapstructure:"timezone"`
	WarningThreshold   string `mapstructure:"warning_threshold"`
	SweepInterval      string `mapstructure:"sweep_interval"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// NotifyConfig defines notification dispatch settings
type NotifyConfig struct {
	Kind         string   `mapstructure:"kind"` // "webhook" or "log"
	WebhookURL   string   `mapstructure:"webhook_url"`
	Timeout      string   `mapstructure:"timeout"`
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
}

// APIConfig defines HTTP API access settings
type APIConfig struct {
	AdminToken string `mapstructure:"admin_token"`
	SweepToken string `mapstructure:"sweep_token"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCREENTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.api_port", 880)
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/screentime/screentime.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Timer defaults
	v.SetDefault("timer.timezone", "Australia/Sydney")
	v.SetDefault("timer.warning_threshold", "10m")
	v.SetDefault("timer.sweep_interval", "5m")
	v.SetDefault("timer.audit_retention_days", 90)

	// Notify defaults
	v.SetDefault("notify.kind", "log")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.admin_user_ids", []string{})
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required for redis storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if _, err := time.LoadLocation(cfg.Timer.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timer.Timezone, err)
	}
	if _, err := time.ParseDuration(cfg.Timer.WarningThreshold); err != nil {
		return fmt.Errorf("invalid warning_threshold: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Timer.SweepInterval); err != nil {
		return fmt.Errorf("invalid sweep_interval: %w", err)
	}

	switch cfg.Notify.Kind {
	case "log":
	case "webhook":
		if cfg.Notify.WebhookURL == "" {
			return fmt.Errorf("notify webhook_url is required for webhook notifier")
		}
	default:
		return fmt.Errorf("unsupported notifier kind: %s", cfg.Notify.Kind)
	}

	return nil
}
