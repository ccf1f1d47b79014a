package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/storage"
)

var (
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zombies_matches_created_total",
		Help: "Matches started",
	})
	MatchesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zombies_matches_finalized_total",
		Help: "Matches finalized",
	})
	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zombies_finalize_duration_seconds",
		Help:    "Time spent finalizing a match, including every player update",
		Buckets: prometheus.DefBuckets,
	})
	PlayersUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zombies_player_stats_updates_total",
		Help: "Player records written during finalization",
	})
	IntegrityWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zombies_multiple_active_matches_total",
		Help: "Finalizations that found more than one active match for a server",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zombies_events_published_total",
		Help: "Domain events delivered to the sink",
	}, []string{"event"})
	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zombies_events_failed_total",
		Help: "Domain events the sink rejected",
	}, []string{"event"})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zombies_events_dropped_total",
		Help: "Domain events dropped because the queue was full or closed",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zombies_jobs_processed_total",
		Help: "Ingestion jobs handled, by type and result",
	}, []string{"type", "result"})
)

type TotalsReader interface {
	CachedTotals(ctx context.Context) (storage.Totals, error)
}

// Collector exposes the cached match/player totals as gauges on every scrape.
type Collector struct {
	totalsDesc *prometheus.Desc
	source     TotalsReader
	nodeID     string
	logger     zerolog.Logger
	timeout    time.Duration
}

func NewCollector(source TotalsReader, nodeID string, logger zerolog.Logger) *Collector {
	return &Collector{
		totalsDesc: prometheus.NewDesc("zombies_totals", "Number of matches and players, differentiated by node/type", []string{"nodeID", "type"}, nil),
		source:     source,
		nodeID:     nodeID,
		logger:     logger,
		timeout:    2 * time.Second,
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalsDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	totals, err := c.source.CachedTotals(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read totals for metrics")
		return
	}
	for typ, v := range map[string]int64{
		"matches":        totals.Matches,
		"active_matches": totals.ActiveMatches,
		"players":        totals.Players,
	} {
		ch <- prometheus.MustNewConstMetric(c.totalsDesc, prometheus.GaugeValue, float64(v), c.nodeID, typ)
	}
}

func PrometheusMetricsServer(collector *Collector, port string) error {
	prometheus.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return http.ListenAndServe(":"+port, mux)
}
