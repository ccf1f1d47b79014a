package redis

import (
	"context"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Params struct {
	Addr     string
	Username string
	Password string
}

// Driver wraps the Redis client shared by the event sink, the totals cache, the job queue and the
// distributed locks.
type Driver struct {
	client *redisv8.Client
	logger zerolog.Logger
}

func NewDriver(params Params, logger zerolog.Logger) *Driver {
	rdb := redisv8.NewClient(&redisv8.Options{
		Addr:     params.Addr,
		Username: params.Username,
		Password: params.Password,
		DB:       0, // use default DB
	})
	return &Driver{client: rdb, logger: logger}
}

func (redisDriver *Driver) Ping(ctx context.Context) error {
	return redisDriver.client.Ping(ctx).Err()
}

func (redisDriver *Driver) Close() error {
	return redisDriver.client.Close()
}
