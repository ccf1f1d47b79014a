package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/storage"
)

type blockingSource struct {
	calls   int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (s *blockingSource) Refresh(ctx context.Context) (storage.Totals, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	return storage.Totals{Matches: 1}, s.err
}

func TestTotalsRefresher_SkipsOverlappingRuns(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	r := newTotalsRefresher(src, zerolog.Nop())

	done := make(chan bool)
	go func() {
		done <- r.run(context.Background())
	}()
	<-src.started

	if r.run(context.Background()) {
		t.Error("expected the overlapping run to be skipped")
	}
	close(src.release)
	if !<-done {
		t.Error("expected the first run to complete")
	}
	if atomic.LoadInt32(&src.calls) != 1 {
		t.Errorf("expected one refresh, got %d", src.calls)
	}
}

func TestTotalsRefresher_ErrorReleases(t *testing.T) {
	src := &blockingSource{err: errors.New("db down")}
	r := newTotalsRefresher(src, zerolog.Nop())
	if !r.run(context.Background()) || !r.run(context.Background()) {
		t.Error("a failed refresh must not block the next one")
	}
	if src.calls != 2 {
		t.Errorf("expected two refreshes, got %d", src.calls)
	}
}
