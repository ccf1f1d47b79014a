package event

import (
	"context"
	"time"
)

const (
	MatchCreated = "match.created"
	MatchEnded   = "match.ended"
)

// Event is a domain event. Payload is one of the *Payload types below.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

type MatchCreatedPayload struct {
	MatchID     string    `json:"matchId"`
	ServerID    string    `json:"serverId"`
	MapName     string    `json:"mapName"`
	PlayerCount int       `json:"playerCount"`
	Timestamp   time.Time `json:"timestamp"`
}

type MatchEndedPayload struct {
	MatchID     string    `json:"matchId"`
	ServerID    string    `json:"serverId"`
	MapName     string    `json:"mapName"`
	Round       int       `json:"round"`
	Duration    int64     `json:"duration"`
	PlayerCount int       `json:"playerCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher accepts events without blocking the caller and without reporting delivery failures.
type Publisher interface {
	Publish(Event)
}

// Sink delivers a single event somewhere (Redis, a test recorder).
type Sink interface {
	Send(ctx context.Context, e Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
