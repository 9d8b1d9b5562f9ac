package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	API       APIConfig       `mapstructure:"api"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Events    EventsConfig    `mapstructure:"events"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Keepalive KeepaliveConfig `mapstructure:"keepalive"`
}

type APIConfig struct {
	BaseURL             string   `mapstructure:"base_url"`
	TimeoutSeconds      int      `mapstructure:"timeout_seconds"`
	LoginTimeoutSeconds int      `mapstructure:"login_timeout_seconds"`
	MaxRetries          int      `mapstructure:"max_retries"`
	PublicEndpoints     []string `mapstructure:"public_endpoints"`
	CSRFCookieName      string   `mapstructure:"csrf_cookie_name"`
	CSRFHeaderName      string   `mapstructure:"csrf_header_name"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c APIConfig) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

type StoreConfig struct {
	// Backend is one of memory, file, redis, sql.
	Backend    string `mapstructure:"backend"`
	FilePath   string `mapstructure:"file_path"`
	Passphrase string `mapstructure:"passphrase"`
	Profile    string `mapstructure:"profile"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type EventsConfig struct {
	// Backend is one of none, nats, kafka.
	Backend string      `mapstructure:"backend"`
	NATS    NATSConfig  `mapstructure:"nats"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type PortalConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

type KeepaliveConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Schedule         string `mapstructure:"schedule"`
	ThresholdSeconds int    `mapstructure:"threshold_seconds"`
}

func (c KeepaliveConfig) Threshold() time.Duration {
	return time.Duration(c.ThresholdSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.login_timeout_seconds", 10)
	v.SetDefault("api.max_retries", 1)
	v.SetDefault("api.public_endpoints", []string{
		"/api/login/",
		"/api/token/refresh/",
		"/api/registration-request/",
		"/api/csrf/",
	})
	v.SetDefault("api.csrf_cookie_name", "csrftoken")
	v.SetDefault("api.csrf_header_name", "X-CSRFToken")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.file_path", ".academy/credentials.json")
	v.SetDefault("store.profile", "default")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "academy_client")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "academy:session:")
	v.SetDefault("events.backend", "none")
	v.SetDefault("events.nats.url", "nats://localhost:4222")
	v.SetDefault("events.nats.subject", "academy.session")
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "academy-session")
	v.SetDefault("portal.port", "3000")
	v.SetDefault("portal.secure_cookies", false)
	v.SetDefault("keepalive.enabled", true)
	v.SetDefault("keepalive.schedule", "@every 30s")
	v.SetDefault("keepalive.threshold_seconds", 60)
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // IDE from cmd/

	// Config file is optional - defaults and ENV still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables take precedence over the config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("api.base_url", "API_URL")
	v.BindEnv("store.passphrase", "STORE_PASSPHRASE")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("portal.session_secret", "SESSION_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "file", "redis", "sql":
	default:
		return fmt.Errorf("invalid store.backend: %q", c.Store.Backend)
	}
	switch c.Events.Backend {
	case "none", "nats", "kafka":
	default:
		return fmt.Errorf("invalid events.backend: %q", c.Events.Backend)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	return nil
}
