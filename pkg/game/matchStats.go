package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const playersKey = "players"

// MatchStats is the stats payload reported when a match ends. Per-player deltas live under "players";
// every other top-level key is carried verbatim in Extra.
type MatchStats struct {
	Players map[string]PlayerDelta
	Extra   map[string]json.RawMessage
}

func (s MatchStats) Player(guid string) (PlayerDelta, bool) {
	d, ok := s.Players[guid]
	return d, ok
}

func (s MatchStats) IsEmpty() bool {
	return len(s.Players) == 0 && len(s.Extra) == 0
}

func (s MatchStats) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Extra)+1)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Players != nil {
		out[playersKey] = s.Players
	}
	return json.Marshal(out)
}

func (s *MatchStats) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = MatchStats{}
	for k, v := range raw {
		if k == playersKey {
			if isNull(v) {
				continue
			}
			var players map[string]PlayerDelta
			if err := json.Unmarshal(v, &players); err != nil {
				return fmt.Errorf("players: %w", err)
			}
			s.Players = players
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}

// PlayerDelta is what a single player did during one match.
type PlayerDelta struct {
	Name      string
	Kills     int
	Deaths    int
	Downs     int
	Revives   int
	Headshots int
	Score     int
	Perks     int
	PowerUps  int
	Round     int
	Extra     map[string]json.RawMessage
}

const (
	deltaName      = "name"
	deltaKills     = "kills"
	deltaDeaths    = "deaths"
	deltaDowns     = "downs"
	deltaRevives   = "revives"
	deltaHeadshots = "headshots"
	deltaScore     = "score"
	deltaPerks     = "perks"
	deltaPowerUps  = "powerups"
	deltaRound     = "round"
)

// game servers have reported the same field under several spellings; they all collapse here
var deltaAliases = map[string]string{
	"player_name":    deltaName,
	"playerName":     deltaName,
	"headshot_kills": deltaHeadshots,
	"headshotKills":  deltaHeadshots,
	"power_ups":      deltaPowerUps,
	"powerUps":       deltaPowerUps,
	"rounds":         deltaRound,
}

var deltaCanonical = map[string]struct{}{
	deltaName: {}, deltaKills: {}, deltaDeaths: {}, deltaDowns: {}, deltaRevives: {},
	deltaHeadshots: {}, deltaScore: {}, deltaPerks: {}, deltaPowerUps: {}, deltaRound: {},
}

func canonicalDeltaKey(key string) (string, bool) {
	if _, ok := deltaCanonical[key]; ok {
		return key, true
	}
	c, ok := deltaAliases[key]
	return c, ok
}

func (d *PlayerDelta) counter(key string) *int {
	switch key {
	case deltaKills:
		return &d.Kills
	case deltaDeaths:
		return &d.Deaths
	case deltaDowns:
		return &d.Downs
	case deltaRevives:
		return &d.Revives
	case deltaHeadshots:
		return &d.Headshots
	case deltaScore:
		return &d.Score
	case deltaPerks:
		return &d.Perks
	case deltaPowerUps:
		return &d.PowerUps
	case deltaRound:
		return &d.Round
	}
	return nil
}

func (d PlayerDelta) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+10)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.Name != "" {
		out[deltaName] = d.Name
	}
	for key := range deltaCanonical {
		if c := d.counter(key); c != nil && *c != 0 {
			out[key] = *c
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the canonical keys and their aliases. A canonical key wins over an alias when
// both are present. Missing counters are 0, negative ones clamp to 0 and fractional ones truncate.
func (d *PlayerDelta) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = PlayerDelta{}

	// aliases first so canonical spellings overwrite them
	for _, canonicalPass := range []bool{false, true} {
		for k, v := range raw {
			key, known := canonicalDeltaKey(k)
			if !known {
				if canonicalPass {
					continue
				}
				if d.Extra == nil {
					d.Extra = make(map[string]json.RawMessage)
				}
				d.Extra[k] = v
				continue
			}
			if (key == k) != canonicalPass {
				continue
			}
			if err := d.set(key, v); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

func (d *PlayerDelta) set(key string, v json.RawMessage) error {
	if isNull(v) {
		return nil
	}
	if key == deltaName {
		return json.Unmarshal(v, &d.Name)
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return err
	}
	if f < 0 || math.IsNaN(f) {
		f = 0
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	*d.counter(key) = int(f)
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
