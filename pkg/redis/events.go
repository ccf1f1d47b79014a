package redis

import (
	"context"
	"encoding/json"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/zombiestats/tracker/pkg/event"
	"github.com/zombiestats/tracker/pkg/rediskey"
)

const RecentEventsMax = 100

// Send publishes the event on its channel and records it in the capped recent-events list.
func (redisDriver *Driver) Send(ctx context.Context, e event.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = redisDriver.client.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
		pipe.Publish(ctx, rediskey.EventChannel(e.Name), b)
		pipe.LPush(ctx, rediskey.RecentEvents, b)
		pipe.LTrim(ctx, rediskey.RecentEvents, 0, RecentEventsMax-1)
		return nil
	})
	return err
}

// RecentEvents returns up to limit encoded events, newest first.
func (redisDriver *Driver) RecentEvents(ctx context.Context, limit int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > RecentEventsMax {
		limit = RecentEventsMax
	}
	elems, err := redisDriver.client.LRange(ctx, rediskey.RecentEvents, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	events := make([]json.RawMessage, 0, len(elems))
	for _, e := range elems {
		events = append(events, json.RawMessage(e))
	}
	return events, nil
}
