package game

import (
	"math"
	"time"
)

const UnknownPlayerName = "Unknown"

// PlayerStats is a player's all-time record across every finalized match.
type PlayerStats struct {
	GUID          string
	Name          string
	Kills         int64
	Deaths        int64
	Downs         int64
	Revives       int64
	HeadshotKills int64
	Score         int64
	Perks         int64
	PowerUps      int64
	MatchesPlayed int64
	HighestRound  int
	TotalRounds   int64
	FirstSeen     time.Time
	LastSeen      time.Time
}

func NewPlayerStats(guid, name string, now time.Time) *PlayerStats {
	if name == "" {
		name = UnknownPlayerName
	}
	return &PlayerStats{
		GUID:      guid,
		Name:      name,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// KillDeathRatio is kills/deaths rounded to 2 places. With no deaths it is the raw kill count.
func (p *PlayerStats) KillDeathRatio() float64 {
	if p.Deaths == 0 {
		return float64(p.Kills)
	}
	return round2(float64(p.Kills) / float64(p.Deaths))
}

func (p *PlayerStats) HeadshotPercentage() float64 {
	if p.Kills == 0 {
		return 0
	}
	return round2(float64(p.HeadshotKills) / float64(p.Kills) * 100)
}

func (p *PlayerStats) AvgKillsPerMatch() float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return round2(float64(p.Kills) / float64(p.MatchesPlayed))
}

// ApplyMatchDelta folds one match's per-player numbers into the record. It must be called once per
// player per match: TotalRounds counts applications, not rounds.
func (p *PlayerStats) ApplyMatchDelta(delta PlayerDelta, now time.Time) {
	p.Kills += nonNegative(delta.Kills)
	p.Deaths += nonNegative(delta.Deaths)
	p.Downs += nonNegative(delta.Downs)
	p.Revives += nonNegative(delta.Revives)
	p.HeadshotKills += nonNegative(delta.Headshots)
	p.Score += nonNegative(delta.Score)
	p.Perks += nonNegative(delta.Perks)
	p.PowerUps += nonNegative(delta.PowerUps)
	if delta.Round > p.HighestRound {
		p.HighestRound = delta.Round
	}
	p.TotalRounds++
	p.LastSeen = now
}

func (p *PlayerStats) RecordMatchCompletion(round int, now time.Time) {
	p.MatchesPlayed++
	if round > p.HighestRound {
		p.HighestRound = round
	}
	p.LastSeen = now
}

type PlayerSummary struct {
	GUID               string    `json:"guid"`
	Name               string    `json:"name"`
	Kills              int64     `json:"kills"`
	Deaths             int64     `json:"deaths"`
	Downs              int64     `json:"downs"`
	Revives            int64     `json:"revives"`
	HeadshotKills      int64     `json:"headshotKills"`
	Score              int64     `json:"score"`
	Perks              int64     `json:"perks"`
	PowerUps           int64     `json:"powerUps"`
	MatchesPlayed      int64     `json:"matchesPlayed"`
	HighestRound       int       `json:"highestRound"`
	TotalRounds        int64     `json:"totalRounds"`
	FirstSeen          time.Time `json:"firstSeen"`
	LastSeen           time.Time `json:"lastSeen"`
	KillDeathRatio     float64   `json:"killDeathRatio"`
	HeadshotPercentage float64   `json:"headshotPercentage"`
	AvgKillsPerMatch   float64   `json:"avgKillsPerMatch"`
}

func (p *PlayerStats) Summary() PlayerSummary {
	return PlayerSummary{
		GUID:               p.GUID,
		Name:               p.Name,
		Kills:              p.Kills,
		Deaths:             p.Deaths,
		Downs:              p.Downs,
		Revives:            p.Revives,
		HeadshotKills:      p.HeadshotKills,
		Score:              p.Score,
		Perks:              p.Perks,
		PowerUps:           p.PowerUps,
		MatchesPlayed:      p.MatchesPlayed,
		HighestRound:       p.HighestRound,
		TotalRounds:        p.TotalRounds,
		FirstSeen:          p.FirstSeen,
		LastSeen:           p.LastSeen,
		KillDeathRatio:     p.KillDeathRatio(),
		HeadshotPercentage: p.HeadshotPercentage(),
		AvgKillsPerMatch:   p.AvgKillsPerMatch(),
	}
}

func nonNegative(v int) int64 {
	if v < 0 {
		return 0
	}
	return int64(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
