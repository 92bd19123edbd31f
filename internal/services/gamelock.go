package services

import (
	"time"

	"github.com/confpool/confidence-pool/internal/models"
)

// GameLockEvaluator decides whether a game has locked at a given
// instant. Lock state drives pick immutability, the override engine's
// preconditions and the live monitoring window, so the rule lives in
// one place.
//
// All time comparisons happen in a single reference timezone rather
// than the host's local zone, so the same schedule produces the same
// lock decisions on every deployment.
type GameLockEvaluator struct {
	loc *time.Location
}

func NewGameLockEvaluator(loc *time.Location) *GameLockEvaluator {
	return &GameLockEvaluator{loc: loc}
}

// Location returns the reference timezone shared by every component
// that reasons about kickoff times.
func (e *GameLockEvaluator) Location() *time.Location {
	return e.loc
}

// IsLocked reports whether the game is locked at the given instant:
// the game has started or finished per its status, or the kickoff time
// has passed. A game without a usable kickoff locks on status alone.
func (e *GameLockEvaluator) IsLocked(game *models.Game, now time.Time) bool {
	if game.Status == models.GameInProgress || game.Status == models.GameCompleted {
		return true
	}
	if !game.HasKickoff() {
		return false
	}
	return !now.In(e.loc).Before(game.KickoffAt.In(e.loc))
}

// IsLive reports whether the game is being played right now: either
// the feed says in_progress, or it has locked by kickoff time but the
// feed has not marked it completed yet.
func (e *GameLockEvaluator) IsLive(game *models.Game, now time.Time) bool {
	if game.Status == models.GameInProgress {
		return true
	}
	return game.Status != models.GameCompleted && e.IsLocked(game, now)
}
