// Package config loads the server settings from the process environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// Config holds every tunable of the chat server.
type Config struct {
	Port string `env:"PORT,default=3000"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST,default=localhost"`
	DBPort      string `env:"DB_PORT,default=5432"`
	DBUser      string `env:"DB_USER,default=user"`
	DBPassword  string `env:"DB_PASSWORD,default=password"`
	DBName      string `env:"DB_NAME,default=roomchat"`
	DBSSLMode   string `env:"DB_SSLMODE,default=disable"`

	// RedisAddr enables the cross-instance relay when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	JWTSecret string `env:"JWT_SECRET,required=true"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	SendBufferSize     int   `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageSize     int64 `env:"MAX_MESSAGE_SIZE,default=8192"`
	HistoryPageSize    int   `env:"HISTORY_PAGE_SIZE,default=50"`
	MaxHistoryPageSize int   `env:"MAX_HISTORY_PAGE_SIZE,default=200"`
	TypingBacklogLimit int   `env:"TYPING_BACKLOG_LIMIT,default=32"`
	RateLimitPerSecond int   `env:"RATE_LIMIT_PER_SECOND,default=10"`
	RateLimitBurst     int   `env:"RATE_LIMIT_BURST,default=20"`

	DefaultLanguage string        `env:"DEFAULT_LANGUAGE,default=en"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads .env files (if any) into the environment and decodes it.
// A missing .env file is reported through loadedDotEnv=false, not as an error.
func Load(files ...string) (cfg Config, loadedDotEnv bool, err error) {
	loadedDotEnv = godotenv.Load(files...) == nil

	if _, err = env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, loadedDotEnv, fmt.Errorf("config error: %w", err)
	}
	return cfg.sanitize(), loadedDotEnv, nil
}

// FromEnvSet decodes an explicit variable set; used by tests and tooling.
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg.sanitize(), nil
}

func (c Config) sanitize() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 8192
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 50
	}
	if c.MaxHistoryPageSize < c.HistoryPageSize {
		c.MaxHistoryPageSize = c.HistoryPageSize
	}
	if c.TypingBacklogLimit <= 0 {
		c.TypingBacklogLimit = 32
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = c.RateLimitPerSecond
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	return c
}

// DSN returns the PostgreSQL connection string. DATABASE_URL wins over the
// discrete DB_* variables; URLs are converted to key=value form.
func (c Config) DSN() (string, error) {
	if c.DatabaseURL == "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode), nil
	}
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		dsn, err := pq.ParseURL(c.DatabaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		return dsn, nil
	}
	if !strings.Contains(c.DatabaseURL, "=") {
		return "", errors.New("invalid DATABASE_URL: expected a postgres URL or a key=value DSN")
	}
	return c.DatabaseURL, nil
}

// Origins returns the allowed WebSocket origins. A nil result with allowAll
// set means any origin is accepted.
func (c Config) Origins() (origins []string, allowAll bool) {
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
			continue
		case "*":
			return nil, true
		}
		origins = append(origins, strings.ToLower(o))
	}
	return origins, false
}
