package tracker

import (
	"fmt"
	"strings"

	"github.com/zombiestats/tracker/pkg/storage"
)

var (
	// ErrNoActiveMatch is returned by FinalizeMatch when the server has nothing to finalize.
	ErrNoActiveMatch = fmt.Errorf("no active match: %w", storage.ErrNotFound)
	// ErrActiveMatchExists is returned by CreateMatch while the server still has an unfinished match.
	ErrActiveMatchExists = fmt.Errorf("active match exists: %w", storage.ErrConflict)
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PartialFinalizeError reports a finalize that ended the match but stopped folding stats at Player.
// Uncredited lists Player and every participant after it; pass it to FoldPlayers once the cause is fixed.
type PartialFinalizeError struct {
	MatchID    string
	Player     string
	Uncredited []string
	Err        error
}

func (e *PartialFinalizeError) Error() string {
	return fmt.Sprintf("finalize match %s, player %s (uncredited: %s): %v",
		e.MatchID, e.Player, strings.Join(e.Uncredited, ", "), e.Err)
}

func (e *PartialFinalizeError) Unwrap() error {
	return e.Err
}
