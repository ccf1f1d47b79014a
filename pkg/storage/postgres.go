package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg/game"
)

//go:embed postgres.sql
var schemaSQL string

const (
	DefaultLimit = 10
	MaxLimit     = 100

	uniqueViolation      = "23505"
	activeMatchIndexName = "matches_one_active_per_server"
)

type PgxIface interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

type PsqlInterface struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

func ConstructPsqlConnectURL(addr, username, password string) string {
	return fmt.Sprintf("postgres://%s?user=%s&password=%s", addr, username, password)
}

func NewPsqlInterface(logger zerolog.Logger) *PsqlInterface {
	return &PsqlInterface{logger: logger}
}

func (psqlInterface *PsqlInterface) Init(ctx context.Context, addr string) error {
	dbpool, err := pgxpool.Connect(ctx, addr)
	if err != nil {
		return persistenceErr("connect", err)
	}
	psqlInterface.Pool = dbpool
	return nil
}

// EnsureSchema creates the tables and indexes if they don't exist yet. Safe to run on every start.
func (psqlInterface *PsqlInterface) EnsureSchema(ctx context.Context) error {
	return ensureSchema(ctx, psqlInterface.Pool)
}

func ensureSchema(ctx context.Context, conn PgxIface) error {
	_, err := conn.Exec(ctx, schemaSQL)
	return persistenceErr("ensure schema", err)
}

func (psqlInterface *PsqlInterface) Ping(ctx context.Context) error {
	return persistenceErr("ping", psqlInterface.Pool.Ping(ctx))
}

func (psqlInterface *PsqlInterface) Close() {
	psqlInterface.Pool.Close()
}

// CreateMatch inserts a new match, assigning a time-ordered id when the match has none.
// It does not look for an existing active match; the partial unique index rejects a second one with ErrConflict.
func (psqlInterface *PsqlInterface) CreateMatch(ctx context.Context, match *game.Match) (*game.Match, error) {
	return createMatch(ctx, psqlInterface.Pool, match)
}

func createMatch(ctx context.Context, conn PgxIface, match *game.Match) (*game.Match, error) {
	m := *match
	if m.ID == "" {
		id, err := newMatchID()
		if err != nil {
			return nil, persistenceErr("generate match id", err)
		}
		m.ID = id
	}
	if m.PlayerGuids == nil {
		m.PlayerGuids = []string{}
	}
	row, err := MatchToRow(&m)
	if err != nil {
		return nil, persistenceErr("encode match", err)
	}
	_, err = conn.Exec(ctx, "INSERT INTO matches ("+matchColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);",
		row.MatchID, row.ServerID, row.MapName, row.Round, row.MaxRound, row.StartTime, row.EndTime, row.PlayerGuids, row.Stats)
	if isActiveMatchViolation(err) {
		return nil, fmt.Errorf("server %s: %w", m.ServerID, ErrConflict)
	}
	if err != nil {
		return nil, persistenceErr("insert match", err)
	}
	return &m, nil
}

func newMatchID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func isActiveMatchViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeMatchIndexName
}

func (psqlInterface *PsqlInterface) GetMatch(ctx context.Context, matchID string) (*game.Match, error) {
	return getMatch(ctx, psqlInterface.Pool, psqlInterface.logger, matchID)
}

// returns nil, nil when there is no such match
func getMatch(ctx context.Context, conn PgxIface, logger zerolog.Logger, matchID string) (*game.Match, error) {
	var rows []*PostgresMatch
	err := pgxscan.Select(ctx, conn, &rows, "SELECT "+matchColumns+" FROM matches WHERE match_id = $1;", matchID)
	if err != nil {
		return nil, persistenceErr("get match", err)
	}
	if len(rows) > 0 {
		return rows[0].ToMatch(logger), nil
	}
	return nil, nil
}

// GetActiveMatches returns every match on the server without an end time, newest first. More than one
// result means the one-active-match invariant was broken at some point.
func (psqlInterface *PsqlInterface) GetActiveMatches(ctx context.Context, serverID string) ([]*game.Match, error) {
	return getActiveMatches(ctx, psqlInterface.Pool, psqlInterface.logger, serverID)
}

func getActiveMatches(ctx context.Context, conn PgxIface, logger zerolog.Logger, serverID string) ([]*game.Match, error) {
	var rows []*PostgresMatch
	err := pgxscan.Select(ctx, conn, &rows, "SELECT "+matchColumns+" FROM matches WHERE server_id = $1 AND end_time IS NULL ORDER BY start_time DESC;", serverID)
	if err != nil {
		return nil, persistenceErr("get active matches", err)
	}
	return toMatches(rows, logger), nil
}

func (psqlInterface *PsqlInterface) UpdateMatch(ctx context.Context, matchID string, update game.MatchUpdate) (*game.Match, error) {
	return updateMatch(ctx, psqlInterface.Pool, psqlInterface.logger, matchID, update)
}

func updateMatch(ctx context.Context, conn PgxIface, logger zerolog.Logger, matchID string, update game.MatchUpdate) (*game.Match, error) {
	if update.IsEmpty() {
		m, err := getMatch(ctx, conn, logger, matchID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
		}
		return m, nil
	}

	var round, maxRound *int32
	if update.Round != nil {
		r := roundColumn(*update.Round)
		round = &r
	}
	if update.MaxRound != nil {
		r := roundColumn(*update.MaxRound)
		maxRound = &r
	}
	var stats *string
	if update.Stats != nil {
		row, err := MatchToRow(&game.Match{Stats: *update.Stats})
		if err != nil {
			return nil, persistenceErr("encode match", err)
		}
		stats = &row.Stats
	}
	var endTime *time.Time
	if update.EndTime != nil {
		e := *update.EndTime
		endTime = &e
	}

	var rows []*PostgresMatch
	err := pgxscan.Select(ctx, conn, &rows, "UPDATE matches SET round = COALESCE($2, round), max_round = COALESCE($3, max_round), "+
		"end_time = COALESCE($4, end_time), stats = COALESCE($5, stats) WHERE match_id = $1 RETURNING "+matchColumns+";",
		matchID, round, maxRound, endTime, stats)
	if err != nil {
		return nil, persistenceErr("update match", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return rows[0].ToMatch(logger), nil
}

func (psqlInterface *PsqlInterface) GetRecentMatches(ctx context.Context, limit int) ([]*game.Match, error) {
	return getRecentMatches(ctx, psqlInterface.Pool, psqlInterface.logger, limit)
}

func getRecentMatches(ctx context.Context, conn PgxIface, logger zerolog.Logger, limit int) ([]*game.Match, error) {
	var rows []*PostgresMatch
	err := pgxscan.Select(ctx, conn, &rows, "SELECT "+matchColumns+" FROM matches ORDER BY start_time DESC LIMIT $1;", ClampLimit(limit))
	if err != nil {
		return nil, persistenceErr("get recent matches", err)
	}
	return toMatches(rows, logger), nil
}

func toMatches(rows []*PostgresMatch, logger zerolog.Logger) []*game.Match {
	matches := make([]*game.Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, r.ToMatch(logger))
	}
	return matches
}

func (psqlInterface *PsqlInterface) GetPlayerStats(ctx context.Context, guid string) (*game.PlayerStats, error) {
	return getPlayerStats(ctx, psqlInterface.Pool, guid)
}

// returns nil, nil for a player that has never finished a match
func getPlayerStats(ctx context.Context, conn PgxIface, guid string) (*game.PlayerStats, error) {
	var rows []*PostgresPlayerStats
	err := pgxscan.Select(ctx, conn, &rows, "SELECT "+playerColumns+" FROM player_stats WHERE player_guid = $1;", guid)
	if err != nil {
		return nil, persistenceErr("get player stats", err)
	}
	if len(rows) > 0 {
		return rows[0].ToPlayerStats(), nil
	}
	return nil, nil
}

func (psqlInterface *PsqlInterface) PlayerExists(ctx context.Context, guid string) (bool, error) {
	return playerExists(ctx, psqlInterface.Pool, guid)
}

func playerExists(ctx context.Context, conn PgxIface, guid string) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM player_stats WHERE player_guid = $1);", guid).Scan(&exists)
	if err != nil {
		return false, persistenceErr("player exists", err)
	}
	return exists, nil
}

// SavePlayerStats upserts the record in a single statement. first_seen keeps its original value and
// counters never move backwards, even if a stale copy is written.
func (psqlInterface *PsqlInterface) SavePlayerStats(ctx context.Context, stats *game.PlayerStats) error {
	return savePlayerStats(ctx, psqlInterface.Pool, stats)
}

func savePlayerStats(ctx context.Context, conn PgxIface, stats *game.PlayerStats) error {
	r := PlayerStatsToRow(stats)
	_, err := conn.Exec(ctx, "INSERT INTO player_stats ("+playerColumns+") "+
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) "+
		"ON CONFLICT (player_guid) DO UPDATE SET "+
		"player_name = EXCLUDED.player_name, "+
		"kills = GREATEST(player_stats.kills, EXCLUDED.kills), "+
		"deaths = GREATEST(player_stats.deaths, EXCLUDED.deaths), "+
		"downs = GREATEST(player_stats.downs, EXCLUDED.downs), "+
		"revives = GREATEST(player_stats.revives, EXCLUDED.revives), "+
		"headshot_kills = GREATEST(player_stats.headshot_kills, EXCLUDED.headshot_kills), "+
		"score = GREATEST(player_stats.score, EXCLUDED.score), "+
		"matches_played = GREATEST(player_stats.matches_played, EXCLUDED.matches_played), "+
		"highest_round = GREATEST(player_stats.highest_round, EXCLUDED.highest_round), "+
		"total_rounds = GREATEST(player_stats.total_rounds, EXCLUDED.total_rounds), "+
		"perks = GREATEST(player_stats.perks, EXCLUDED.perks), "+
		"power_ups = GREATEST(player_stats.power_ups, EXCLUDED.power_ups), "+
		"last_seen = GREATEST(player_stats.last_seen, EXCLUDED.last_seen);",
		r.PlayerGUID, r.PlayerName, r.Kills, r.Deaths, r.Downs, r.Revives, r.HeadshotKills, r.Score,
		r.MatchesPlayed, r.HighestRound, r.TotalRounds, r.Perks, r.PowerUps, r.FirstSeen, r.LastSeen)
	return persistenceErr("save player stats", err)
}

var orderColumns = map[string]string{
	"kills":          "kills",
	"score":          "score",
	"matchesPlayed":  "matches_played",
	"matches_played": "matches_played",
	"highestRound":   "highest_round",
	"highest_round":  "highest_round",
}

// OrderColumn maps a requested sort field onto the allow-list. Anything unknown sorts by kills.
func OrderColumn(field string) string {
	if c, ok := orderColumns[field]; ok {
		return c
	}
	return "kills"
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (psqlInterface *PsqlInterface) GetTopPlayers(ctx context.Context, limit int, orderField string) ([]*game.PlayerStats, error) {
	return getTopPlayers(ctx, psqlInterface.Pool, limit, orderField)
}

func getTopPlayers(ctx context.Context, conn PgxIface, limit int, orderField string) ([]*game.PlayerStats, error) {
	var rows []*PostgresPlayerStats
	// the column always comes from the allow-list, never from the caller
	query := fmt.Sprintf("SELECT %s FROM player_stats ORDER BY %s DESC, player_guid ASC LIMIT $1;", playerColumns, OrderColumn(orderField))
	err := pgxscan.Select(ctx, conn, &rows, query, ClampLimit(limit))
	if err != nil {
		return nil, persistenceErr("get top players", err)
	}
	players := make([]*game.PlayerStats, 0, len(rows))
	for _, r := range rows {
		players = append(players, r.ToPlayerStats())
	}
	return players, nil
}

func (psqlInterface *PsqlInterface) QueryTotals(ctx context.Context) (Totals, error) {
	return queryTotals(ctx, psqlInterface.Pool)
}

func queryTotals(ctx context.Context, conn PgxIface) (Totals, error) {
	var r []Totals
	err := pgxscan.Select(ctx, conn, &r, "SELECT (SELECT COUNT(*) FROM matches) AS matches, "+
		"(SELECT COUNT(*) FROM matches WHERE end_time IS NULL) AS active_matches, "+
		"(SELECT COUNT(*) FROM player_stats) AS players;")
	if err != nil {
		return Totals{}, persistenceErr("query totals", err)
	}
	if len(r) < 1 {
		return Totals{}, nil
	}
	return r[0], nil
}
