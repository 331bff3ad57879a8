package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Vault    VaultConfig
	Webhook  WebhookConfig
	Events   EventsConfig
	Auth     AuthConfig
	LogLevel string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
}

type VaultConfig struct {
	// KeyHex is the hex-encoded 32-byte encryption key for credentials at
	// rest. Key management itself (rotation, KMS) lives outside this service.
	KeyHex string
}

type WebhookConfig struct {
	TimeoutSecs      int
	MaxResponseChars int
}

type EventsConfig struct {
	// Enabled turns on the AMQP ingress that feeds operational events into
	// the webhook dispatcher.
	Enabled       bool
	Queue         string
	PrefetchCount int
}

type AuthConfig struct {
	// Enabled guards /api/v1 with API-key bearer auth.
	Enabled bool
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: get("SERVER_HOST"),
			Port: get("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  get("DB_SSLMODE"),
		},
		Vault: VaultConfig{
			KeyHex: get("VAULT_KEY"),
		},
		Webhook: WebhookConfig{
			TimeoutSecs:      intEnv("WEBHOOK_TIMEOUT_SECONDS", 30),
			MaxResponseChars: intEnv("WEBHOOK_MAX_RESPONSE_CHARS", 1000),
		},
		Events: EventsConfig{
			Enabled:       boolEnv("EVENTS_ENABLED", false),
			Queue:         os.Getenv("EVENTS_QUEUE"),
			PrefetchCount: intEnv("EVENTS_PREFETCH_COUNT", 10),
		},
		Auth: AuthConfig{
			Enabled: boolEnv("API_AUTH_ENABLED", false),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	if cfg.Events.Enabled {
		cfg.RabbitMQ = RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     get("RABBITMQ_HOST"),
			Port:     get("RABBITMQ_PORT"),
			User:     get("RABBITMQ_USER"),
			Password: get("RABBITMQ_PASSWORD"),
			VHost:    get("RABBITMQ_VHOST"),
		}
		if cfg.Events.Queue == "" {
			missing = append(missing, "EVENTS_QUEUE")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// ConnectionString returns a DSN string for GORM.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrateURL returns the postgres:// URL used by golang-migrate.
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
