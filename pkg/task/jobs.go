package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombiestats/tracker/pkg/game"
)

type JobType string

const (
	MatchStartJob  JobType = "match.start"
	MatchEndJob    JobType = "match.end"
	// MatchCreditJob finishes a finalize that stopped part way through the participants.
	MatchCreditJob JobType = "match.credit"
)

// ErrNoJob is returned by a Queue when nothing arrived before the pop timeout.
var ErrNoJob = errors.New("no job available")

// Job is one game-server event waiting on the ingestion queue.
type Job struct {
	Type     JobType         `json:"type"`
	ServerID string          `json:"serverId"`
	Payload  json.RawMessage `json:"payload"`
}

// Validate checks the envelope only. Payloads are decoded when the job runs.
func (j Job) Validate() error {
	switch j.Type {
	case MatchStartJob, MatchEndJob, MatchCreditJob:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, j.Type)
	}
	if j.ServerID == "" {
		return errors.New("serverId is required")
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("%w: payload is required", ErrBadPayload)
	}
	return nil
}

type MatchStartPayload struct {
	MapName     string     `json:"mapName"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	PlayerGuids []string   `json:"playerGuids"`
}

type MatchEndPayload struct {
	Round   int             `json:"round"`
	Stats   game.MatchStats `json:"stats"`
	EndTime *time.Time      `json:"endTime,omitempty"`
}

type MatchCreditPayload struct {
	MatchID     string   `json:"matchId"`
	PlayerGuids []string `json:"playerGuids"`
}

func NewMatchStartJob(serverID string, payload MatchStartPayload) (Job, error) {
	return newJob(MatchStartJob, serverID, payload)
}

func NewMatchEndJob(serverID string, payload MatchEndPayload) (Job, error) {
	return newJob(MatchEndJob, serverID, payload)
}

func NewMatchCreditJob(serverID string, payload MatchCreditPayload) (Job, error) {
	return newJob(MatchCreditJob, serverID, payload)
}

func newJob(jobType JobType, serverID string, payload interface{}) (Job, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{Type: jobType, ServerID: serverID, Payload: b}, nil
}
