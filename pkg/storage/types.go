package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/game"
)

type PostgresMatch struct {
	MatchID     string     `db:"match_id"`
	ServerID    string     `db:"server_id"`
	MapName     string     `db:"map_name"`
	Round       int32      `db:"round"`
	MaxRound    int32      `db:"max_round"`
	StartTime   time.Time  `db:"start_time"`
	EndTime     *time.Time `db:"end_time"`
	PlayerGuids string     `db:"player_guids"`
	Stats       string     `db:"stats"`
}

const matchColumns = "match_id, server_id, map_name, round, max_round, start_time, end_time, player_guids, stats"

func MatchToRow(m *game.Match) (*PostgresMatch, error) {
	guids := m.PlayerGuids
	if guids == nil {
		guids = []string{}
	}
	guidBytes, err := json.Marshal(guids)
	if err != nil {
		return nil, fmt.Errorf("encode player_guids: %w", err)
	}
	statBytes, err := json.Marshal(m.Stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	return &PostgresMatch{
		MatchID:     m.ID,
		ServerID:    m.ServerID,
		MapName:     m.MapName,
		Round:       roundColumn(m.Round),
		MaxRound:    roundColumn(m.MaxRound),
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		PlayerGuids: string(guidBytes),
		Stats:       string(statBytes),
	}, nil
}

// roundColumn clamps a round into the non-negative int4 range of the round columns.
func roundColumn(round int) int32 {
	if round < 0 {
		return 0
	}
	if round > game.MaxRound {
		return game.MaxRound
	}
	return int32(round)
}

// ToMatch decodes the row. Undecodable JSON columns are logged and replaced by empty values.
func (r *PostgresMatch) ToMatch(logger zerolog.Logger) *game.Match {
	m := &game.Match{
		ID:          r.MatchID,
		ServerID:    r.ServerID,
		MapName:     r.MapName,
		Round:       int(r.Round),
		MaxRound:    int(r.MaxRound),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		PlayerGuids: []string{},
	}
	if r.PlayerGuids != "" {
		var guids []string
		if err := json.Unmarshal([]byte(r.PlayerGuids), &guids); err != nil {
			logMalformed(logger, MalformedDataWarning{MatchID: r.MatchID, Column: "player_guids", Err: err})
		} else if guids != nil {
			m.PlayerGuids = guids
		}
	}
	if r.Stats != "" {
		var stats game.MatchStats
		if err := json.Unmarshal([]byte(r.Stats), &stats); err != nil {
			logMalformed(logger, MalformedDataWarning{MatchID: r.MatchID, Column: "stats", Err: err})
		} else {
			m.Stats = stats
		}
	}
	return m
}

func logMalformed(logger zerolog.Logger, w MalformedDataWarning) {
	logger.Warn().Err(w.Err).Str("match_id", w.MatchID).Str("column", w.Column).Msg("malformed stored data, using empty value")
}

type PostgresPlayerStats struct {
	PlayerGUID    string    `db:"player_guid"`
	PlayerName    string    `db:"player_name"`
	Kills         int64     `db:"kills"`
	Deaths        int64     `db:"deaths"`
	Downs         int64     `db:"downs"`
	Revives       int64     `db:"revives"`
	HeadshotKills int64     `db:"headshot_kills"`
	Score         int64     `db:"score"`
	MatchesPlayed int64     `db:"matches_played"`
	HighestRound  int32     `db:"highest_round"`
	TotalRounds   int64     `db:"total_rounds"`
	Perks         int64     `db:"perks"`
	PowerUps      int64     `db:"power_ups"`
	FirstSeen     time.Time `db:"first_seen"`
	LastSeen      time.Time `db:"last_seen"`
}

const playerColumns = "player_guid, player_name, kills, deaths, downs, revives, headshot_kills, score, " +
	"matches_played, highest_round, total_rounds, perks, power_ups, first_seen, last_seen"

func PlayerStatsToRow(p *game.PlayerStats) *PostgresPlayerStats {
	return &PostgresPlayerStats{
		PlayerGUID:    p.GUID,
		PlayerName:    p.Name,
		Kills:         p.Kills,
		Deaths:        p.Deaths,
		Downs:         p.Downs,
		Revives:       p.Revives,
		HeadshotKills: p.HeadshotKills,
		Score:         p.Score,
		MatchesPlayed: p.MatchesPlayed,
		HighestRound:  roundColumn(p.HighestRound),
		TotalRounds:   p.TotalRounds,
		Perks:         p.Perks,
		PowerUps:      p.PowerUps,
		FirstSeen:     p.FirstSeen,
		LastSeen:      p.LastSeen,
	}
}

func (r *PostgresPlayerStats) ToPlayerStats() *game.PlayerStats {
	return &game.PlayerStats{
		GUID:          r.PlayerGUID,
		Name:          r.PlayerName,
		Kills:         r.Kills,
		Deaths:        r.Deaths,
		Downs:         r.Downs,
		Revives:       r.Revives,
		HeadshotKills: r.HeadshotKills,
		Score:         r.Score,
		MatchesPlayed: r.MatchesPlayed,
		HighestRound:  int(r.HighestRound),
		TotalRounds:   r.TotalRounds,
		Perks:         r.Perks,
		PowerUps:      r.PowerUps,
		FirstSeen:     r.FirstSeen,
		LastSeen:      r.LastSeen,
	}
}

func PlayerStatsToCSV(players []*game.PlayerStats) string {
	s := bytes.NewBufferString("player_guid,player_name,kills,deaths,downs,revives,headshot_kills,score," +
		"matches_played,highest_round,total_rounds,perks,power_ups,kd_ratio,headshot_pct,avg_kills,\n")
	for _, p := range players {
		if p != nil {
			s.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%.2f,%.2f,%.2f,\n",
				p.GUID, csvEscape(p.Name), p.Kills, p.Deaths, p.Downs, p.Revives, p.HeadshotKills, p.Score,
				p.MatchesPlayed, p.HighestRound, p.TotalRounds, p.Perks, p.PowerUps,
				p.KillDeathRatio(), p.HeadshotPercentage(), p.AvgKillsPerMatch()))
		}
	}
	return s.String()
}

func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

type Totals struct {
	Matches       int64 `db:"matches" json:"matches"`
	ActiveMatches int64 `db:"active_matches" json:"activeMatches"`
	Players       int64 `db:"players" json:"players"`
}
