package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// Durable store: "mongo" (default) or "postgres"
	DurableStore  string `mapstructure:"DURABLE_STORE"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`

	// Redis backs the message cache, the job queues and the socket.io adapter
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Job queues
	QueuePrefix      string        `mapstructure:"QUEUE_PREFIX"`
	QueueAttempts    int           `mapstructure:"QUEUE_ATTEMPTS"`
	QueueBackoff     time.Duration `mapstructure:"QUEUE_BACKOFF"`
	QueueConcurrency int           `mapstructure:"QUEUE_CONCURRENCY"`
}

var AppConfig *Config

var defaults = map[string]interface{}{
	"PORT":              "5000",
	"GO_ENV":            "development",
	"FRONTEND_URL":      "http://localhost:3000",
	"JWT_SECRET":        "",
	"DURABLE_STORE":     StoreMongo,
	"MONGO_URI":         "mongodb://localhost:27017",
	"MONGO_DATABASE":    "chattyApp-Backend",
	"DATABASE_URL":      "",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"QUEUE_PREFIX":      "bull",
	"QUEUE_ATTEMPTS":    3,
	"QUEUE_BACKOFF":     "5s",
	"QUEUE_CONCURRENCY": 5,
}

// LoadConfig reads .env (if present) and the environment into AppConfig.
func LoadConfig() {
	cfg, err := Load(".env")
	if err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	AppConfig = cfg
}

// Load builds a Config from the given env file and the process environment.
// A missing file is not an error; environment variables always win.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
		} else {
			log.Println("No .env file found, relying on environment variables")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DurableStore {
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when DURABLE_STORE=mongo")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DURABLE_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown DURABLE_STORE %q", c.DurableStore)
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.QueueAttempts <= 0 {
		return errors.New("QUEUE_ATTEMPTS must be positive")
	}
	if c.QueueConcurrency <= 0 {
		return errors.New("QUEUE_CONCURRENCY must be positive")
	}
	return nil
}
