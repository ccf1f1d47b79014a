package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/rediskey"
)

const (
	LinearBackoffMs = 100
	MinRetries      = 10
)

var ErrLockNotObtained = errors.New("lock not obtained")

// Locker is a distributed per-key lock for running several tracker replicas against one database.
// A held lock is refreshed every half TTL until released, so it only expires when its holder dies.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func (redisDriver *Driver) Locker(ttl time.Duration) *Locker {
	return &Locker{
		client: redislock.New(redisDriver.client),
		ttl:    ttl,
		logger: redisDriver.logger,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, rediskey.Lock(key), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(time.Millisecond*LinearBackoffMs), maxRetries(l.ttl)),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	} else if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	go keepAlive(stop, l.ttl/2, func(ctx context.Context) error {
		return lock.Refresh(ctx, l.ttl, nil)
	}, func(err error) {
		l.logger.Error().Err(err).Str("key", key).Msg("failed to refresh lock")
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			err := lock.Release(context.Background())
			if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Error().Err(err).Str("key", key).Msg("failed to release lock")
			}
		})
	}, nil
}

// keepAlive calls refresh every interval until stop is closed. It gives up after the first failure:
// a lock that could not be refreshed has been lost.
func keepAlive(stop <-chan struct{}, interval time.Duration, refresh func(ctx context.Context) error, onErr func(error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := refresh(ctx)
			cancel()
			if err != nil {
				onErr(err)
				return
			}
		}
	}
}

// maxRetries keeps a waiter retrying for at least one full TTL, so an abandoned lock is always outlived.
func maxRetries(ttl time.Duration) int {
	n := int(ttl/(time.Millisecond*LinearBackoffMs)) + 1
	if n < MinRetries {
		return MinRetries
	}
	return n
}
