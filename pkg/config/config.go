package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	LockBackendRedis  = "redis"
	LockBackendMemory = "memory"
)

// Config holds every setting of the tracker process. All values come from the environment.
type Config struct {
	PostgresAddr string `env:"POSTGRES_ADDR,required"`
	PostgresUser string `env:"POSTGRES_USER,required"`
	PostgresPass string `env:"POSTGRES_PASS,required"`

	RedisAddr string `env:"REDIS_ADDR,required"`
	RedisUser string `env:"REDIS_USER"`
	RedisPass string `env:"REDIS_PASS"`

	ApiPort     string `env:"API_PORT" envDefault:"5000"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"2112"`
	HealthPort  string `env:"HEALTH_PORT" envDefault:"8080"`
	NodeID      string `env:"NODE_ID"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	WorkerShards int           `env:"WORKER_SHARDS" envDefault:"0"`
	LockTTL      time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	LockBackend  string        `env:"LOCK_BACKEND" envDefault:"redis"`
	EventBuffer  int           `env:"EVENT_BUFFER" envDefault:"256"`

	TotalsRefreshInterval time.Duration `env:"TOTALS_REFRESH_INTERVAL" envDefault:"5m"`

	LocalePath  string `env:"LOCALE_PATH" envDefault:"locales/"`
	DefaultLang string `env:"DEFAULT_LANG" envDefault:"en"`
}

// Load reads an optional .env file and then parses the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// variables already set in the environment win over the file
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

func Parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.NodeID == "" {
		c.NodeID, _ = os.Hostname()
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.LockBackend {
	case LockBackendRedis, LockBackendMemory:
	default:
		return fmt.Errorf("LOCK_BACKEND must be %q or %q, got %q", LockBackendRedis, LockBackendMemory, c.LockBackend)
	}
	if c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("EVENT_BUFFER must be positive")
	}
	if c.TotalsRefreshInterval <= 0 {
		return errors.New("TOTALS_REFRESH_INTERVAL must be positive")
	}
	return nil
}
