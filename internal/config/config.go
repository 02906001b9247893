package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the chat API.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"go-directchat"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Postgres; empty DBURL selects the in-memory repository
	DBURL         string `env:"DB_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Redis backs the conversation cache and the background queue
	RedisURL             string        `env:"REDIS_URL"`
	ConversationCacheTTL time.Duration `env:"CONVERSATION_CACHE_TTL" envDefault:"10m"`
	AsynqConcurrency     int           `env:"ASYNQ_CONCURRENCY" envDefault:"10"`
	AsynqQueues          string        `env:"ASYNQ_QUEUES" envDefault:"default=1,chat=1"`

	// Bounds the in-process cache used when REDIS_URL is empty
	MemoryCacheSize int `env:"MEMORY_CACHE_SIZE" envDefault:"10000"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	AuthIssuer    string `env:"AUTH_ISSUER"`

	// Websocket
	WSSendBuffer  int           `env:"WS_SEND_BUFFER" envDefault:"128"`
	WSReadTimeout time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.AuthEnabled && strings.TrimSpace(c.AuthJWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_ENABLED is true")
	}
	if c.MemoryCacheSize <= 0 {
		return fmt.Errorf("MEMORY_CACHE_SIZE must be positive")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
