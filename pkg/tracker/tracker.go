package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/event"
	"github.com/zombiestats/tracker/pkg/game"
	"github.com/zombiestats/tracker/pkg/metrics"
	"github.com/zombiestats/tracker/pkg/storage"
)

// Store is the persistence the tracker needs. storage.PsqlInterface implements it.
type Store interface {
	CreateMatch(ctx context.Context, match *game.Match) (*game.Match, error)
	GetMatch(ctx context.Context, matchID string) (*game.Match, error)
	GetActiveMatches(ctx context.Context, serverID string) ([]*game.Match, error)
	UpdateMatch(ctx context.Context, matchID string, update game.MatchUpdate) (*game.Match, error)
	GetRecentMatches(ctx context.Context, limit int) ([]*game.Match, error)
	GetPlayerStats(ctx context.Context, guid string) (*game.PlayerStats, error)
	SavePlayerStats(ctx context.Context, stats *game.PlayerStats) error
	GetTopPlayers(ctx context.Context, limit int, orderField string) ([]*game.PlayerStats, error)
}

type CreateMatchRequest struct {
	ServerID    string
	MapName     string
	StartTime   time.Time // zero means now
	PlayerGuids []string
}

type EndData struct {
	Round   int
	Stats   game.MatchStats
	EndTime *time.Time // nil means now
}

// Tracker owns the match lifecycle for every game server. Operations on one server are serialized
// through the server's lock; updates to one player are serialized through the player's lock.
type Tracker struct {
	store     Store
	locker    Locker
	publisher event.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewTracker(store Store, locker Locker, publisher event.Publisher, logger zerolog.Logger) *Tracker {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Tracker{
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (t *Tracker) CreateMatch(ctx context.Context, req CreateMatchRequest) (*game.Match, error) {
	if req.ServerID == "" {
		return nil, &ValidationError{Field: "serverId", Reason: "required"}
	}
	unlock, err := t.locker.Lock(ctx, serverKey(req.ServerID))
	if err != nil {
		return nil, fmt.Errorf("lock server %s: %w", req.ServerID, err)
	}
	defer unlock()

	active, err := t.store.GetActiveMatches(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, fmt.Errorf("server %s has match %s: %w", req.ServerID, active[0].ID, ErrActiveMatchExists)
	}

	start := req.StartTime
	if start.IsZero() {
		start = t.now()
	}
	m, err := t.store.CreateMatch(ctx, game.NewMatch(req.ServerID, req.MapName, start, req.PlayerGuids))
	if errors.Is(err, storage.ErrConflict) {
		return nil, fmt.Errorf("server %s: %w", req.ServerID, ErrActiveMatchExists)
	}
	if err != nil {
		return nil, err
	}

	metrics.MatchesCreated.Inc()
	t.logger.Info().
		Str("match_id", m.ID).
		Str("server_id", m.ServerID).
		Str("map", m.MapName).
		Int("players", len(m.PlayerGuids)).
		Msg("match created")
	t.publisher.Publish(event.Event{
		Name: event.MatchCreated,
		Payload: event.MatchCreatedPayload{
			MatchID:     m.ID,
			ServerID:    m.ServerID,
			MapName:     m.MapName,
			PlayerCount: len(m.PlayerGuids),
			Timestamp:   t.now(),
		},
	})
	return m, nil
}

// FinalizeMatch ends the server's active match and folds the reported stats into every participant's
// record, one player at a time in participant order. The match is ended before any player is touched,
// so the first failing player aborts with a *PartialFinalizeError: players before it stay credited, the
// rest are listed in Uncredited, and calling FinalizeMatch again returns ErrNoActiveMatch. Use
// FoldPlayers with the uncredited guids to finish the match.
func (t *Tracker) FinalizeMatch(ctx context.Context, serverID string, end EndData) (*game.Match, error) {
	if serverID == "" {
		return nil, &ValidationError{Field: "serverId", Reason: "required"}
	}
	if end.Round < 0 {
		return nil, &ValidationError{Field: "round", Reason: "must not be negative"}
	}
	if end.Round > game.MaxRound {
		return nil, &ValidationError{Field: "round", Reason: fmt.Sprintf("must not exceed %d", game.MaxRound)}
	}
	timer := time.Now()
	defer func() {
		metrics.FinalizeDuration.Observe(time.Since(timer).Seconds())
	}()

	unlock, err := t.locker.Lock(ctx, serverKey(serverID))
	if err != nil {
		return nil, fmt.Errorf("lock server %s: %w", serverID, err)
	}
	defer unlock()

	active, err := t.store.GetActiveMatches(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("server %s: %w", serverID, ErrNoActiveMatch)
	}
	if len(active) > 1 {
		ids := make([]string, len(active))
		for i, m := range active {
			ids[i] = m.ID
		}
		metrics.IntegrityWarnings.Inc()
		t.logger.Warn().Str("server_id", serverID).Strs("match_ids", ids).Msg("multiple active matches, finalizing the newest")
	}
	match := active[0]

	now := t.now()
	endTime := now
	if end.EndTime != nil {
		endTime = *end.EndTime
	}
	round := end.Round
	maxRound := max(end.Round, match.MaxRound)
	stats := end.Stats
	updated, err := t.store.UpdateMatch(ctx, match.ID, game.MatchUpdate{
		Round:    &round,
		MaxRound: &maxRound,
		EndTime:  &endTime,
		Stats:    &stats,
	})
	if err != nil {
		return nil, err
	}

	if err := t.foldPlayers(ctx, match.ID, match.PlayerGuids, end.Stats, round, now); err != nil {
		return nil, err
	}

	metrics.MatchesFinalized.Inc()
	t.logger.Info().
		Str("match_id", updated.ID).
		Str("server_id", serverID).
		Int("round", updated.Round).
		Int("max_round", updated.MaxRound).
		Int64("duration", updated.Duration()).
		Msg("match finalized")
	t.publisher.Publish(event.Event{
		Name: event.MatchEnded,
		Payload: event.MatchEndedPayload{
			MatchID:     updated.ID,
			ServerID:    updated.ServerID,
			MapName:     updated.MapName,
			Round:       updated.Round,
			Duration:    updated.Duration(),
			PlayerCount: len(updated.PlayerGuids),
			Timestamp:   now,
		},
	})
	return updated, nil
}

// FoldPlayers credits an ended match to the given participants, using the stats and round stored on
// the match. It finishes a finalize that failed part way; guids already credited would be counted again.
func (t *Tracker) FoldPlayers(ctx context.Context, matchID string, guids []string) error {
	if matchID == "" {
		return &ValidationError{Field: "matchId", Reason: "required"}
	}
	m, err := t.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.IsActive() {
		return &ValidationError{Field: "matchId", Reason: "match is still active"}
	}
	participants := make(map[string]struct{}, len(m.PlayerGuids))
	for _, guid := range m.PlayerGuids {
		participants[guid] = struct{}{}
	}
	for _, guid := range guids {
		if _, ok := participants[guid]; !ok {
			return &ValidationError{Field: "guids", Reason: fmt.Sprintf("%s did not play match %s", guid, m.ID)}
		}
	}
	if err := t.foldPlayers(ctx, m.ID, guids, m.Stats, m.Round, t.now()); err != nil {
		return err
	}
	t.logger.Info().Str("match_id", m.ID).Strs("guids", guids).Msg("players credited")
	return nil
}

// foldPlayers updates each distinct guid in order and stops at the first failure.
func (t *Tracker) foldPlayers(ctx context.Context, matchID string, guids []string, stats game.MatchStats, round int, now time.Time) error {
	var distinct []string
	seen := make(map[string]struct{}, len(guids))
	for _, guid := range guids {
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}
		distinct = append(distinct, guid)
	}
	for i, guid := range distinct {
		if err := t.updatePlayer(ctx, guid, stats, round, now); err != nil {
			return &PartialFinalizeError{
				MatchID:    matchID,
				Player:     guid,
				Uncredited: append([]string{}, distinct[i:]...),
				Err:        err,
			}
		}
	}
	return nil
}

func (t *Tracker) updatePlayer(ctx context.Context, guid string, stats game.MatchStats, round int, now time.Time) error {
	unlock, err := t.locker.Lock(ctx, playerKey(guid))
	if err != nil {
		return fmt.Errorf("lock player: %w", err)
	}
	defer unlock()

	delta, _ := stats.Player(guid)
	p, err := t.store.GetPlayerStats(ctx, guid)
	if err != nil {
		return err
	}
	if p == nil {
		p = game.NewPlayerStats(guid, delta.Name, now)
	} else if delta.Name != "" {
		p.Name = delta.Name
	}
	p.ApplyMatchDelta(delta, now)
	p.RecordMatchCompletion(round, now)
	if err := t.store.SavePlayerStats(ctx, p); err != nil {
		return err
	}
	metrics.PlayersUpdated.Inc()
	return nil
}

// GetMatch returns storage.ErrNotFound for an unknown id.
func (t *Tracker) GetMatch(ctx context.Context, matchID string) (*game.Match, error) {
	m, err := t.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("match %s: %w", matchID, storage.ErrNotFound)
	}
	return m, nil
}

// GetPlayerStats returns storage.ErrNotFound for a player that never finished a match.
func (t *Tracker) GetPlayerStats(ctx context.Context, guid string) (*game.PlayerStats, error) {
	p, err := t.store.GetPlayerStats(ctx, guid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("player %s: %w", guid, storage.ErrNotFound)
	}
	return p, nil
}

func (t *Tracker) GetTopPlayers(ctx context.Context, limit int, orderField string) ([]*game.PlayerStats, error) {
	return t.store.GetTopPlayers(ctx, limit, orderField)
}

func (t *Tracker) GetRecentMatches(ctx context.Context, limit int) ([]*game.Match, error) {
	return t.store.GetRecentMatches(ctx, limit)
}
