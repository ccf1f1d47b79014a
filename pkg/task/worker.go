package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/game"
	"github.com/zombiestats/tracker/pkg/metrics"
	"github.com/zombiestats/tracker/pkg/tracker"
)

const (
	DefaultPopTimeout = 5 * time.Second
	DefaultJobTimeout = 30 * time.Second
	queueErrorBackoff = time.Second
)

var (
	ErrUnknownJob = errors.New("unknown job type")
	ErrBadPayload = errors.New("malformed job payload")
)

type Queue interface {
	PopJob(ctx context.Context, timeout time.Duration) (Job, error)
}

type MatchTracker interface {
	CreateMatch(ctx context.Context, req tracker.CreateMatchRequest) (*game.Match, error)
	FinalizeMatch(ctx context.Context, serverID string, end tracker.EndData) (*game.Match, error)
	FoldPlayers(ctx context.Context, matchID string, guids []string) error
}

// Worker pulls jobs off the queue and runs them on one of several single-goroutine shards. A server
// always maps to the same shard, so its jobs run in arrival order while different servers run in parallel.
type Worker struct {
	queue      Queue
	tracker    MatchTracker
	shards     []*workerpool.WorkerPool
	logger     zerolog.Logger
	popTimeout time.Duration
	jobTimeout time.Duration
}

func NewWorker(queue Queue, matchTracker MatchTracker, shards int, logger zerolog.Logger) *Worker {
	if shards <= 0 {
		shards = runtime.NumCPU()
	}
	pools := make([]*workerpool.WorkerPool, shards)
	for i := range pools {
		pools[i] = workerpool.New(1)
	}
	return &Worker{
		queue:      queue,
		tracker:    matchTracker,
		shards:     pools,
		logger:     logger,
		popTimeout: DefaultPopTimeout,
		jobTimeout: DefaultJobTimeout,
	}
}

// Run consumes the queue until ctx is done. Jobs already submitted keep running; call Stop to wait for them.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("shards", len(w.shards)).Msg("ingestion worker started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := w.queue.PopJob(ctx, w.popTimeout)
		if errors.Is(err, ErrNoJob) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("failed to pop job")
			select {
			case <-time.After(queueErrorBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		w.Submit(ctx, job)
	}
}

func (w *Worker) Submit(ctx context.Context, job Job) {
	// jobs outlive the Run context, each with its own deadline
	jobCtx := context.WithoutCancel(ctx)
	w.shards[shardFor(job.ServerID, len(w.shards))].Submit(func() {
		ctx, cancel := context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancel()
		err := w.Handle(ctx, job)
		result := resultLabel(err)
		metrics.JobsProcessed.WithLabelValues(string(job.Type), result).Inc()

		logger := w.logger.With().Str("job", string(job.Type)).Str("server_id", job.ServerID).Logger()
		switch result {
		case "rejected":
			logger.Warn().Err(err).Msg("job rejected")
		case "failed":
			var pErr *tracker.PartialFinalizeError
			if errors.As(err, &pErr) {
				logger.Error().Err(pErr.Err).
					Str("match_id", pErr.MatchID).
					Strs("uncredited", pErr.Uncredited).
					Msg("match ended but some players were not credited, queue a match.credit job to finish")
				break
			}
			logger.Error().Err(err).Msg("job failed")
		default:
			logger.Debug().Msg("job done")
		}
	})
}

func (w *Worker) Handle(ctx context.Context, job Job) error {
	switch job.Type {
	case MatchStartJob:
		var p MatchStartPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		req := tracker.CreateMatchRequest{
			ServerID:    job.ServerID,
			MapName:     p.MapName,
			PlayerGuids: p.PlayerGuids,
		}
		if p.StartTime != nil {
			req.StartTime = *p.StartTime
		}
		_, err := w.tracker.CreateMatch(ctx, req)
		return err
	case MatchEndJob:
		var p MatchEndPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		_, err := w.tracker.FinalizeMatch(ctx, job.ServerID, tracker.EndData{
			Round:   p.Round,
			Stats:   p.Stats,
			EndTime: p.EndTime,
		})
		return err
	case MatchCreditJob:
		var p MatchCreditPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return w.tracker.FoldPlayers(ctx, p.MatchID, p.PlayerGuids)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, job.Type)
	}
}

// Stop waits for every submitted job to finish.
func (w *Worker) Stop() {
	for _, pool := range w.shards {
		pool.StopWait()
	}
}

func shardFor(serverID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serverID))
	return int(h.Sum32() % uint32(shards))
}

func resultLabel(err error) string {
	var vErr *tracker.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &vErr),
		errors.Is(err, tracker.ErrNoActiveMatch),
		errors.Is(err, tracker.ErrActiveMatchExists),
		errors.Is(err, ErrUnknownJob),
		errors.Is(err, ErrBadPayload):
		return "rejected"
	default:
		return "failed"
	}
}
