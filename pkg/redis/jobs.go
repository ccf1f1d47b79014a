package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/zombiestats/tracker/pkg/rediskey"
	"github.com/zombiestats/tracker/pkg/task"
)

// PushJob appends to the ingestion queue. The queue never expires: jobs wait for a worker however long it is down.
func (redisDriver *Driver) PushJob(ctx context.Context, job task.Job) error {
	jBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return redisDriver.client.RPush(ctx, rediskey.JobQueue, jBytes).Err()
}

// PopJob blocks for up to timeout and returns task.ErrNoJob when the queue stayed empty.
func (redisDriver *Driver) PopJob(ctx context.Context, timeout time.Duration) (task.Job, error) {
	elems, err := redisDriver.client.BLPop(ctx, timeout, rediskey.JobQueue).Result()
	if errors.Is(err, redisv8.Nil) {
		return task.Job{}, task.ErrNoJob
	} else if err != nil {
		return task.Job{}, err
	}
	if len(elems) < 2 {
		return task.Job{}, errors.New("insufficient elements returned")
	}

	var j task.Job
	err = json.Unmarshal([]byte(elems[1]), &j)
	return j, err
}
