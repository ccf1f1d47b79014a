package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"github.com/zombiestats/tracker/pkg"
	"github.com/zombiestats/tracker/pkg/game"
	"github.com/zombiestats/tracker/pkg/locale"
	"github.com/zombiestats/tracker/pkg/storage"
	"github.com/zombiestats/tracker/pkg/task"
	"github.com/zombiestats/tracker/pkg/tracker"
)

// Stats is the read side of the tracker.
type Stats interface {
	GetMatch(ctx context.Context, matchID string) (*game.Match, error)
	GetRecentMatches(ctx context.Context, limit int) ([]*game.Match, error)
	GetTopPlayers(ctx context.Context, limit int, orderField string) ([]*game.PlayerStats, error)
	GetPlayerStats(ctx context.Context, guid string) (*game.PlayerStats, error)
}

type TotalsReader interface {
	CachedTotals(ctx context.Context) (storage.Totals, error)
}

type EventFeed interface {
	RecentEvents(ctx context.Context, limit int) ([]json.RawMessage, error)
}

// JobQueue accepts ingestion jobs from game servers.
type JobQueue interface {
	PushJob(ctx context.Context, job task.Job) error
}

type Api struct {
	stats      Stats
	totals     TotalsReader
	events     EventFeed
	jobs       JobQueue
	translator *locale.Translator
	logger     zerolog.Logger
}

func NewApi(stats Stats, totals TotalsReader, events EventFeed, jobs JobQueue, translator *locale.Translator, logger zerolog.Logger) *Api {
	return &Api{
		stats:      stats,
		totals:     totals,
		events:     events,
		jobs:       jobs,
		translator: translator,
		logger:     logger,
	}
}

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Info struct {
	Version string         `json:"version"`
	Commit  string         `json:"commit"`
	Totals  storage.Totals `json:"totals"`
}

func (api *Api) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/info", handleGetInfo(api))
	r.GET("/events/recent", handleGetRecentEvents(api))
	r.POST("/jobs", handlePostJob(api))

	matchGroup := r.Group("/matches")
	matchGroup.GET("", handleGetRecentMatches(api))
	matchGroup.GET("/:id", handleGetMatch(api))

	playerGroup := r.Group("/players")
	playerGroup.GET("/top", handleGetTopPlayers(api))
	playerGroup.GET("/:guid", handleGetPlayer(api))

	return r
}

func (api *Api) StartServer(port string) error {
	return api.Router().Run(":" + port)
}

// GetInfo godoc
// @Summary Get Tracker Info
// @Description Version and cached match/player totals
// @Produce json
// @Success 200 {object} Response
// @Router /info [get]
func handleGetInfo(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		totals, err := api.totals.CachedTotals(c.Request.Context())
		if err != nil {
			api.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{
			Success: true,
			Data: Info{
				Version: pkg.Version,
				Commit:  pkg.Commit,
				Totals:  totals,
			},
		})
	}
}

func handleGetRecentEvents(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, ok := api.limit(c)
		if !ok {
			return
		}
		events, err := api.events.RecentEvents(c.Request.Context(), limit)
		if err != nil {
			api.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: events})
	}
}

// PostJob godoc
// @Summary Queue an ingestion job
// @Description match.start or match.end event from a game server
// @Accept json
// @Produce json
// @Success 202 {object} Response
// @Failure 400 {object} Response
// @Router /jobs [post]
func handlePostJob(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		var job task.Job
		if err := c.ShouldBindJSON(&job); err != nil {
			api.reply(c, http.StatusBadRequest, msgInvalidJob, map[string]interface{}{"Reason": err.Error()})
			return
		}
		if err := job.Validate(); err != nil {
			api.reply(c, http.StatusBadRequest, msgInvalidJob, map[string]interface{}{"Reason": err.Error()})
			return
		}
		if err := api.jobs.PushJob(c.Request.Context(), job); err != nil {
			api.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, Response{Success: true})
	}
}

// GetRecentMatches godoc
// @Summary List Recent Matches
// @Produce json
// @Param limit query int false "Number of matches (1-100, default 10)"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /matches [get]
func handleGetRecentMatches(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, ok := api.limit(c)
		if !ok {
			return
		}
		matches, err := api.stats.GetRecentMatches(c.Request.Context(), limit)
		if err != nil {
			api.fail(c, err)
			return
		}
		summaries := make([]game.MatchSummary, 0, len(matches))
		for _, m := range matches {
			summaries = append(summaries, m.Summary())
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: summaries})
	}
}

// GetMatch godoc
// @Summary Get Match
// @Produce json
// @Param id path string true "Match ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /matches/{id} [get]
func handleGetMatch(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		id := c.Param("id")
		m, err := api.stats.GetMatch(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			api.reply(c, http.StatusNotFound, msgMatchNotFound, map[string]interface{}{"ID": id})
			return
		} else if err != nil {
			api.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: m.Summary()})
	}
}

// GetTopPlayers godoc
// @Summary List Top Players
// @Description Unknown order fields sort by kills
// @Produce json
// @Param limit query int false "Number of players (1-100, default 10)"
// @Param order query string false "kills, score, matchesPlayed or highestRound"
// @Param format query string false "json (default) or csv"
// @Success 200 {object} Response
// @Router /players/top [get]
func handleGetTopPlayers(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, ok := api.limit(c)
		if !ok {
			return
		}
		players, err := api.stats.GetTopPlayers(c.Request.Context(), limit, c.Query("order"))
		if err != nil {
			api.fail(c, err)
			return
		}
		if c.Query("format") == "csv" {
			c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(storage.PlayerStatsToCSV(players)))
			return
		}
		summaries := make([]game.PlayerSummary, 0, len(players))
		for _, p := range players {
			summaries = append(summaries, p.Summary())
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: summaries})
	}
}

// GetPlayer godoc
// @Summary Get Player
// @Produce json
// @Param guid path string true "Player GUID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /players/{guid} [get]
func handleGetPlayer(api *Api) func(c *gin.Context) {
	return func(c *gin.Context) {
		guid := c.Param("guid")
		p, err := api.stats.GetPlayerStats(c.Request.Context(), guid)
		if errors.Is(err, storage.ErrNotFound) {
			api.reply(c, http.StatusNotFound, msgPlayerNotFound, map[string]interface{}{"GUID": guid})
			return
		} else if err != nil {
			api.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: p.Summary()})
	}
}

// limit reads the optional limit query parameter. Range clamping is left to the store.
func (api *Api) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		api.reply(c, http.StatusBadRequest, msgInvalidLimit, map[string]interface{}{"Limit": raw})
		return 0, false
	}
	return limit, true
}

func (api *Api) fail(c *gin.Context, err error) {
	var vErr *tracker.ValidationError
	switch {
	case errors.As(err, &vErr):
		api.reply(c, http.StatusBadRequest, msgInvalidRequest, map[string]interface{}{"Field": vErr.Field, "Reason": vErr.Reason})
	case errors.Is(err, storage.ErrNotFound):
		api.reply(c, http.StatusNotFound, msgNotFound, nil)
	default:
		api.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		api.reply(c, http.StatusInternalServerError, msgInternalError, nil)
	}
}

func (api *Api) reply(c *gin.Context, status int, message *i18n.Message, data map[string]interface{}) {
	text := api.translator.Localize(message, data, c.Query("lang"), c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(status, Response{Success: false, Message: text})
}
