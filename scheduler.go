package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/storage"
	"golang.org/x/sync/semaphore"
)

const totalsRefreshTimeout = 30 * time.Second

type totalsSource interface {
	Refresh(ctx context.Context) (storage.Totals, error)
}

// totalsRefresher recomputes the cached totals. A run is skipped while the previous one is still going.
type totalsRefresher struct {
	source totalsSource
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

func newTotalsRefresher(source totalsSource, logger zerolog.Logger) *totalsRefresher {
	return &totalsRefresher{
		source: source,
		sem:    semaphore.NewWeighted(1),
		logger: logger,
	}
}

func (r *totalsRefresher) run(ctx context.Context) bool {
	if !r.sem.TryAcquire(1) {
		r.logger.Warn().Msg("skipping totals refresh, previous run still in progress")
		return false
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, totalsRefreshTimeout)
	defer cancel()
	totals, err := r.source.Refresh(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to refresh totals")
		return true
	}
	r.logger.Debug().
		Int64("matches", totals.Matches).
		Int64("active_matches", totals.ActiveMatches).
		Int64("players", totals.Players).
		Msg("refreshed totals")
	return true
}

func startTotalsScheduler(ctx context.Context, r *totalsRefresher, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			r.run(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched, nil
}
