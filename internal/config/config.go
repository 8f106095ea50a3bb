package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Provider   ProviderConfig
	Webhook    WebhookConfig
	Jobs       JobsConfig
	Scheduler  SchedulerConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key string // base64-encoded 32-byte AES key
}

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
}

type WebhookConfig struct {
	Secret             string
	MaxRetries         int
	BaseBackoffSeconds int
	MaxBackoffSeconds  int
	SweepSeconds       int
}

type JobsConfig struct {
	BatchSize        int
	Concurrency      int
	HeartbeatSeconds int
}

type SchedulerConfig struct {
	SyncPollSeconds int
	SyncWorkers     int
}

type RateLimitConfig struct {
	JobsPerHour int
	SyncPerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "cleanlists")
	viper.SetDefault("database.password", "cleanlists")
	viper.SetDefault("database.name", "cleanlists")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("encryption.key", "")
	viper.SetDefault("provider.client_id", "")
	viper.SetDefault("provider.client_secret", "")
	viper.SetDefault("provider.token_url", "https://accounts.spotify.com/api/token")
	viper.SetDefault("provider.api_base_url", "https://api.spotify.com/v1")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.max_retries", 3)
	viper.SetDefault("webhook.base_backoff_seconds", 60)
	viper.SetDefault("webhook.max_backoff_seconds", 3600)
	viper.SetDefault("webhook.sweep_seconds", 30)
	viper.SetDefault("jobs.batch_size", 20)
	viper.SetDefault("jobs.concurrency", 10)
	viper.SetDefault("jobs.heartbeat_seconds", 15)
	viper.SetDefault("scheduler.sync_poll_seconds", 60)
	viper.SetDefault("scheduler.sync_workers", 4)
	viper.SetDefault("ratelimit.jobs_per_hour", 10)
	viper.SetDefault("ratelimit.sync_per_hour", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetString("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			Name:     viper.GetString("database.name"),
			SSLMode:  viper.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Encryption: EncryptionConfig{
			Key: viper.GetString("encryption.key"),
		},
		Provider: ProviderConfig{
			ClientID:     viper.GetString("provider.client_id"),
			ClientSecret: viper.GetString("provider.client_secret"),
			TokenURL:     viper.GetString("provider.token_url"),
			APIBaseURL:   viper.GetString("provider.api_base_url"),
		},
		Webhook: WebhookConfig{
			Secret:             viper.GetString("webhook.secret"),
			MaxRetries:         viper.GetInt("webhook.max_retries"),
			BaseBackoffSeconds: viper.GetInt("webhook.base_backoff_seconds"),
			MaxBackoffSeconds:  viper.GetInt("webhook.max_backoff_seconds"),
			SweepSeconds:       viper.GetInt("webhook.sweep_seconds"),
		},
		Jobs: JobsConfig{
			BatchSize:        viper.GetInt("jobs.batch_size"),
			Concurrency:      viper.GetInt("jobs.concurrency"),
			HeartbeatSeconds: viper.GetInt("jobs.heartbeat_seconds"),
		},
		Scheduler: SchedulerConfig{
			SyncPollSeconds: viper.GetInt("scheduler.sync_poll_seconds"),
			SyncWorkers:     viper.GetInt("scheduler.sync_workers"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour: viper.GetInt("ratelimit.jobs_per_hour"),
			SyncPerHour: viper.GetInt("ratelimit.sync_per_hour"),
		},
	}

	return cfg, nil
}
