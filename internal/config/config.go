// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Config holds every setting the server needs.
type Config struct {
	AppEnv  string
	AppPort string

	StorageDriver string
	DatabaseDSN   string
	MongoURI      string
	MongoDBName   string

	JWTSecret    string
	TokenTTL     time.Duration
	AuthUsername string
	AuthPassword string

	RateLimitMax    int
	RateLimitWindow time.Duration
	RedisURL        string

	RabbitMQURL string
	CORSOrigins string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("DATABASE_DSN", "file:sportstore.db?cache=shared")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "sportstore")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("AUTH_USERNAME", "admin")
	v.SetDefault("AUTH_PASSWORD", "password123")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "3m")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("CORS_ORIGINS", "*")
}

// Load reads envFiles (a missing file is not an error) and then the process
// environment. Explicitly set environment variables win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("loaded env file")
	}

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:          v.GetString("APP_ENV"),
		AppPort:         v.GetString("APP_PORT"),
		StorageDriver:   strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDBName:     v.GetString("MONGO_DB_NAME"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		TokenTTL:        v.GetDuration("TOKEN_TTL"),
		AuthUsername:    v.GetString("AUTH_USERNAME"),
		AuthPassword:    v.GetString("AUTH_PASSWORD"),
		RateLimitMax:    v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow: v.GetDuration("RATE_LIMIT_WINDOW"),
		RedisURL:        v.GetString("REDIS_URL"),
		RabbitMQURL:     v.GetString("RABBITMQ_URL"),
		CORSOrigins:     v.GetString("CORS_ORIGINS"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if !strings.Contains(cfg.AppPort, ":") {
		cfg.AppPort = ":" + cfg.AppPort
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", v.GetString("TOKEN_TTL"))
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", v.GetString("RATE_LIMIT_WINDOW"))
	}
	if cfg.AuthUsername == "" || cfg.AuthPassword == "" {
		return nil, errors.New("AUTH_USERNAME and AUTH_PASSWORD must be set")
	}
	return cfg, nil
}
