package game

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMatch_IsActive(t *testing.T) {
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	m := NewMatch("s1", "nuked", start, []string{"g1", "g2"})
	if !m.IsActive() {
		t.Error("new match should be active")
	}
	if m.Round != 1 || m.MaxRound != 1 {
		t.Errorf("new match should start at round 1, got %d/%d", m.Round, m.MaxRound)
	}
	end := start.Add(time.Minute)
	m.EndTime = &end
	if m.IsActive() {
		t.Error("match with an end time should not be active")
	}
}

func TestNewMatch_CopiesParticipants(t *testing.T) {
	guids := []string{"g1", "g2"}
	m := NewMatch("s1", "nuked", time.Now(), guids)
	guids[0] = "changed"
	if m.PlayerGuids[0] != "g1" {
		t.Error("participant list must not alias the caller's slice")
	}
}

func TestMatch_Duration(t *testing.T) {
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	m := Match{StartTime: start}
	if m.Duration() != 0 {
		t.Error("active match should have zero duration")
	}

	end := start.Add(90*time.Second + 999*time.Millisecond)
	m.EndTime = &end
	if m.Duration() != 90 {
		t.Errorf("expected duration truncated to 90s, got %d", m.Duration())
	}

	// microsecond precision, as stored in TIMESTAMPTZ
	end = start.Add(59*time.Second + 999999*time.Microsecond)
	m.EndTime = &end
	if m.Duration() != 59 {
		t.Errorf("expected 59s, got %d", m.Duration())
	}
}

func TestMatchUpdate_ApplyTo(t *testing.T) {
	m := NewMatch("s1", "nuked", time.Now(), nil)
	if !(MatchUpdate{}).IsEmpty() {
		t.Error("zero update should be empty")
	}

	round := 12
	u := MatchUpdate{Round: &round}
	if u.IsEmpty() {
		t.Error("update with a round should not be empty")
	}
	u.ApplyTo(m)
	if m.Round != 12 || m.MaxRound != 1 {
		t.Errorf("only round should change, got %d/%d", m.Round, m.MaxRound)
	}
	if !m.IsActive() {
		t.Error("end time should be untouched")
	}
}

func TestMatchStats_JSONRoundTrip(t *testing.T) {
	cases := []MatchStats{
		{},
		{Players: map[string]PlayerDelta{}},
		{
			Players: map[string]PlayerDelta{
				"g1": {Name: "Takeo", Kills: 50, Deaths: 3, Headshots: 10, Round: 12},
				"g2": {Kills: 1, Extra: map[string]json.RawMessage{"weapon": json.RawMessage(`"ray_gun"`)}},
			},
			Extra: map[string]json.RawMessage{"boss": json.RawMessage(`{"killed":true}`)},
		},
	}
	for i, c := range cases {
		b, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		var out MatchStats
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !reflect.DeepEqual(c, out) {
			t.Errorf("case %d: round trip mismatch\nwant %+v\ngot  %+v", i, c, out)
		}
	}
}

func TestPlayerDelta_Aliases(t *testing.T) {
	var d PlayerDelta
	err := json.Unmarshal([]byte(`{"playerName":"Richtofen","headshot_kills":4,"powerUps":2,"kills":12.0,"deaths":-1,"mystery":7}`), &d)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Richtofen" || d.Headshots != 4 || d.PowerUps != 2 || d.Kills != 12 {
		t.Errorf("aliases not collapsed: %+v", d)
	}
	if d.Deaths != 0 {
		t.Error("negative counters should clamp to 0")
	}
	if string(d.Extra["mystery"]) != "7" {
		t.Error("unknown keys should pass through")
	}

	err = json.Unmarshal([]byte(`{"headshots":9,"headshotKills":4}`), &d)
	if err != nil {
		t.Fatal(err)
	}
	if d.Headshots != 9 {
		t.Errorf("canonical key should win over alias, got %d", d.Headshots)
	}
	if d.Extra != nil {
		t.Error("decoding should reset previous contents")
	}
}

func TestPlayerDelta_Invalid(t *testing.T) {
	var d PlayerDelta
	if err := json.Unmarshal([]byte(`{"kills":"lots"}`), &d); err == nil {
		t.Error("expected an error for a non-numeric counter")
	}
	var s MatchStats
	if err := json.Unmarshal([]byte(`{"players":[1,2]}`), &s); err == nil {
		t.Error("expected an error for a malformed players map")
	}
}

func TestMatchStats_Scenario(t *testing.T) {
	var s MatchStats
	err := json.Unmarshal([]byte(`{"players":{"g1":{"kills":50,"deaths":3,"headshots":10}}}`), &s)
	if err != nil {
		t.Fatal(err)
	}
	d, ok := s.Player("g1")
	if !ok {
		t.Fatal("expected g1 in payload")
	}
	if d.Kills != 50 || d.Deaths != 3 || d.Headshots != 10 || d.Round != 0 {
		t.Errorf("unexpected delta %+v", d)
	}
	if _, ok := s.Player("g2"); ok {
		t.Error("g2 is not in the payload")
	}
}
