package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/metrics"
)

const (
	DefaultBuffer      = 256
	DefaultSendTimeout = 5 * time.Second
)

// Dispatcher puts a bounded queue in front of a Sink. Publish never blocks: when the queue is full the
// event is dropped and counted.
type Dispatcher struct {
	sink        Sink
	events      chan Event
	logger      zerolog.Logger
	sendTimeout time.Duration

	lock   sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sink Sink, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{
		sink:        sink,
		events:      make(chan Event, buffer),
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Publish(e Event) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if d.closed {
		d.logger.Warn().Str("event", e.Name).Msg("dispatcher closed, dropping event")
		metrics.EventsDropped.Inc()
		return
	}
	select {
	case d.events <- e:
	default:
		d.logger.Warn().Str("event", e.Name).Msg("event queue full, dropping event")
		metrics.EventsDropped.Inc()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.sink.Send(ctx, e)
		cancel()
		if err != nil {
			d.logger.Error().Err(err).Str("event", e.Name).Msg("failed to deliver event")
			metrics.EventsFailed.WithLabelValues(e.Name).Inc()
			continue
		}
		metrics.EventsPublished.WithLabelValues(e.Name).Inc()
	}
}

// Close stops accepting events and waits for the queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.lock.Unlock()
	<-d.done
}
