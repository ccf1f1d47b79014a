package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/storage"
)

type staticTotals struct {
	totals storage.Totals
	err    error
}

func (s staticTotals) CachedTotals(context.Context) (storage.Totals, error) {
	return s.totals, s.err
}

func TestCollector(t *testing.T) {
	c := NewCollector(staticTotals{totals: storage.Totals{Matches: 12, ActiveMatches: 1, Players: 30}}, "node-a", zerolog.Nop())

	expected := `
# HELP zombies_totals Number of matches and players, differentiated by node/type
# TYPE zombies_totals gauge
zombies_totals{nodeID="node-a",type="active_matches"} 1
zombies_totals{nodeID="node-a",type="matches"} 12
zombies_totals{nodeID="node-a",type="players"} 30
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCollector_SourceError(t *testing.T) {
	c := NewCollector(staticTotals{err: errors.New("redis down")}, "node-a", zerolog.Nop())
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("expected no metrics when totals are unavailable, got %d", n)
	}
}
