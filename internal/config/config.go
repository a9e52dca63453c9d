// Package config loads application settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string

	VoteMaxAttempts  int
	VoteRetryBackoff time.Duration
}

// Load reads configuration from the process environment. Values in a .env
// file in the working directory are used for keys not already set.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("TOKEN_TTL", "72h")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("KAFKA_TOPIC", "forum.votes")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("VOTE_MAX_ATTEMPTS", 5)
	v.SetDefault("VOTE_RETRY_BACKOFF", "10ms")

	cfg := &Config{
		AppEnv:           v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		TokenTTL:         v.GetDuration("TOKEN_TTL"),
		CORSOrigins:      splitList(v.GetString("CORS_ORIGINS")),
		RedisURL:         v.GetString("REDIS_URL"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		VoteMaxAttempts:  v.GetInt("VOTE_MAX_ATTEMPTS"),
		VoteRetryBackoff: v.GetDuration("VOTE_RETRY_BACKOFF"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDSN(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseURL resolves only the database connection string, for tools
// that do not serve HTTP.
func LoadDatabaseURL() string {
	v := newViper()
	if dsn := v.GetString("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return buildDSN(v)
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	return v
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.VoteMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("VOTE_MAX_ATTEMPTS must be at least 1, got %d", c.VoteMaxAttempts))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func buildDSN(v *viper.Viper) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("DB_USER"), v.GetString("DB_PASSWORD")),
		Host:     v.GetString("DB_HOST") + ":" + v.GetString("DB_PORT"),
		Path:     "/" + v.GetString("DB_NAME"),
		RawQuery: "sslmode=" + url.QueryEscape(v.GetString("DB_SSLMODE")) + "&TimeZone=UTC",
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
