package game

import (
	"math"
	"time"
)

const (
	FirstRound = 1
	// MaxRound is the largest round the round columns can hold.
	MaxRound = math.MaxInt32
)

// Match is one zombies match on a single game server. A match is active until EndTime is set.
type Match struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"serverId"`
	MapName     string     `json:"mapName"`
	Round       int        `json:"round"`
	MaxRound    int        `json:"maxRound"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	PlayerGuids []string   `json:"playerGuids"`
	Stats       MatchStats `json:"stats"`
}

func NewMatch(serverID, mapName string, start time.Time, playerGuids []string) *Match {
	guids := make([]string, len(playerGuids))
	copy(guids, playerGuids)
	return &Match{
		ServerID:    serverID,
		MapName:     mapName,
		Round:       FirstRound,
		MaxRound:    FirstRound,
		StartTime:   start,
		PlayerGuids: guids,
	}
}

func (m *Match) IsActive() bool {
	return m.EndTime == nil
}

// Duration returns the elapsed whole seconds between start and end, truncated toward zero.
// Active matches report 0.
func (m *Match) Duration() int64 {
	if m.EndTime == nil {
		return 0
	}
	return int64(m.EndTime.Sub(m.StartTime) / time.Second)
}

// MatchUpdate is a partial update of a match. Nil fields are left untouched.
type MatchUpdate struct {
	Round    *int
	MaxRound *int
	EndTime  *time.Time
	Stats    *MatchStats
}

func (u MatchUpdate) IsEmpty() bool {
	return u.Round == nil && u.MaxRound == nil && u.EndTime == nil && u.Stats == nil
}

func (u MatchUpdate) ApplyTo(m *Match) {
	if u.Round != nil {
		m.Round = *u.Round
	}
	if u.MaxRound != nil {
		m.MaxRound = *u.MaxRound
	}
	if u.EndTime != nil {
		end := *u.EndTime
		m.EndTime = &end
	}
	if u.Stats != nil {
		m.Stats = *u.Stats
	}
}

type MatchSummary struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"serverId"`
	MapName     string     `json:"mapName"`
	Round       int        `json:"round"`
	MaxRound    int        `json:"maxRound"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Active      bool       `json:"active"`
	Duration    int64      `json:"duration"`
	PlayerCount int        `json:"playerCount"`
	PlayerGuids []string   `json:"playerGuids"`
	Stats       MatchStats `json:"stats"`
}

func (m *Match) Summary() MatchSummary {
	return MatchSummary{
		ID:          m.ID,
		ServerID:    m.ServerID,
		MapName:     m.MapName,
		Round:       m.Round,
		MaxRound:    m.MaxRound,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Active:      m.IsActive(),
		Duration:    m.Duration(),
		PlayerCount: len(m.PlayerGuids),
		PlayerGuids: m.PlayerGuids,
		Stats:       m.Stats,
	}
}
