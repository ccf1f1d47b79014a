package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/game"
)

func TestMatchToRow_EmptyValues(t *testing.T) {
	row, err := MatchToRow(&game.Match{ID: "m1", ServerID: "s1", Round: 1, MaxRound: 1})
	if err != nil {
		t.Fatal(err)
	}
	if row.PlayerGuids != "[]" {
		t.Errorf("nil participants should encode as an empty list, got %s", row.PlayerGuids)
	}
	if row.Stats != "{}" {
		t.Errorf("empty stats should encode as an empty object, got %s", row.Stats)
	}
}

func TestRoundColumnsClamp(t *testing.T) {
	row, err := MatchToRow(&game.Match{ID: "m1", Round: 1<<32 + 5, MaxRound: 3000000000})
	if err != nil {
		t.Fatal(err)
	}
	if row.Round != game.MaxRound || row.MaxRound != game.MaxRound {
		t.Errorf("oversized rounds must clamp, got %d/%d", row.Round, row.MaxRound)
	}
	row, _ = MatchToRow(&game.Match{ID: "m1", Round: -4, MaxRound: 7})
	if row.Round != 0 || row.MaxRound != 7 {
		t.Errorf("negative rounds must clamp to 0, got %d/%d", row.Round, row.MaxRound)
	}
	if p := PlayerStatsToRow(&game.PlayerStats{HighestRound: 3000000000}); p.HighestRound != game.MaxRound {
		t.Errorf("oversized highest round must clamp, got %d", p.HighestRound)
	}
}

func TestMatchRow_RoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	m := &game.Match{
		ID:          "m1",
		ServerID:    "s1",
		MapName:     "der_riese",
		Round:       30,
		MaxRound:    31,
		StartTime:   start,
		EndTime:     &end,
		PlayerGuids: []string{"g1", "g2"},
		Stats:       game.MatchStats{Players: map[string]game.PlayerDelta{"g1": {Name: "Nikolai", Kills: 12}}},
	}
	row, err := MatchToRow(m)
	if err != nil {
		t.Fatal(err)
	}
	back := row.ToMatch(zerolog.Nop())
	if back.ID != m.ID || back.MapName != m.MapName || back.Round != 30 || back.MaxRound != 31 {
		t.Errorf("scalar fields did not survive: %+v", back)
	}
	if back.EndTime == nil || !back.EndTime.Equal(end) {
		t.Error("end time did not survive")
	}
	if len(back.PlayerGuids) != 2 || back.PlayerGuids[1] != "g2" {
		t.Error("participants did not survive in order")
	}
	if d, _ := back.Stats.Player("g1"); d.Name != "Nikolai" || d.Kills != 12 {
		t.Error("stats did not survive")
	}
}

func TestToMatch_NullGuids(t *testing.T) {
	row := &PostgresMatch{MatchID: "m1", PlayerGuids: "null", Stats: "null"}
	m := row.ToMatch(zerolog.Nop())
	if m.PlayerGuids == nil {
		t.Error("participants must never be nil")
	}
	if !m.Stats.IsEmpty() {
		t.Error("null stats should decode as empty")
	}
}

func TestToMatch_LogsMalformed(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	row := &PostgresMatch{MatchID: "m1", PlayerGuids: "[1,", Stats: "{}"}
	row.ToMatch(logger)
	if !strings.Contains(buf.String(), `"column":"player_guids"`) {
		t.Errorf("expected a warning naming the column, got %s", buf.String())
	}
}

func TestPlayerStatsRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	p := game.NewPlayerStats("g1", "Takeo", now)
	p.ApplyMatchDelta(game.PlayerDelta{Kills: 7, Deaths: 2, Revives: 3, Perks: 4}, now)
	p.RecordMatchCompletion(9, now)

	back := PlayerStatsToRow(p).ToPlayerStats()
	if *back != *p {
		t.Errorf("player stats did not survive: %+v vs %+v", back, p)
	}
}

func TestPlayerStatsToCSV(t *testing.T) {
	players := []*game.PlayerStats{nil, nil}
	if len(strings.Split(PlayerStatsToCSV(players), "\n")) > 2 {
		t.Error("Expected only the header line of CSV when provided with nil player ptrs")
	}

	players[0] = &game.PlayerStats{GUID: "g1", Name: `Tank "The Tank", Dempsey`, Kills: 10, Deaths: 3, HeadshotKills: 1, MatchesPlayed: 2}
	line := strings.Split(PlayerStatsToCSV(players), "\n")[1]
	if line != `g1,"Tank ""The Tank"", Dempsey",10,3,0,0,1,0,2,0,0,0,0,3.33,10.00,5.00,` {
		t.Errorf("Players to CSV didn't match expected value: %s", line)
	}
}
