package services

import (
	"errors"
	"sort"
	"time"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// WeekResolver computes which week the pool is currently in from a
// schedule snapshot. A week stays current until the morning after its
// last kickoff, and never advances past a week that still has a game
// being played.
type WeekResolver struct {
	lock *GameLockEvaluator
}

func NewWeekResolver(lock *GameLockEvaluator) *WeekResolver {
	return &WeekResolver{lock: lock}
}

// ResolveCurrentWeek returns the current week for the given schedule
// snapshot at the given instant.
//
// Each week's release threshold is midnight (reference time) of the
// day after its last kickoff; the current week is the first whose
// threshold has not passed, or the last scheduled week once every
// threshold has. Before accepting week N, the resolver checks for
// games still being played: if N has no live game but the prior
// scheduled week does, the prior week wins.
func (r *WeekResolver) ResolveCurrentWeek(games []models.Game, now time.Time) (int, error) {
	if len(games) == 0 {
		return 0, utils.WrapScheduleComputation(errors.New("schedule snapshot is empty"))
	}

	weeks := scheduledWeeks(games)

	candidate := weeks[len(weeks)-1]
	candidateIdx := len(weeks) - 1
	for i, week := range weeks {
		threshold, ok := r.releaseThreshold(games, week)
		if !ok {
			continue
		}
		if now.In(r.lock.loc).Before(threshold) {
			candidate = week
			candidateIdx = i
			break
		}
	}

	if candidateIdx > 0 {
		prev := weeks[candidateIdx-1]
		if !r.HasLiveGame(games, candidate, now) && r.HasLiveGame(games, prev, now) {
			return prev, nil
		}
	}

	return candidate, nil
}

// HasLiveGame reports whether any game of the given week is live at
// the given instant. The poller re-checks this at call time to mirror
// the resolver's hysteresis against a schedule that may have changed.
func (r *WeekResolver) HasLiveGame(games []models.Game, week int, now time.Time) bool {
	for i := range games {
		if games[i].Week != week {
			continue
		}
		if r.lock.IsLive(&games[i], now) {
			return true
		}
	}
	return false
}

// releaseThreshold computes midnight of the day after the week's last
// kickoff, in reference time. Weeks whose games all lack kickoffs have
// no threshold and are skipped.
func (r *WeekResolver) releaseThreshold(games []models.Game, week int) (time.Time, bool) {
	var last time.Time
	found := false
	for i := range games {
		g := &games[i]
		if g.Week != week || !g.HasKickoff() {
			continue
		}
		if !found || g.KickoffAt.After(last) {
			last = *g.KickoffAt
			found = true
		}
	}
	if !found {
		return time.Time{}, false
	}

	next := last.In(r.lock.loc).AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, r.lock.loc), true
}

func scheduledWeeks(games []models.Game) []int {
	seen := make(map[int]bool)
	weeks := make([]int, 0)
	for i := range games {
		if !seen[games[i].Week] {
			seen[games[i].Week] = true
			weeks = append(weeks, games[i].Week)
		}
	}
	sort.Ints(weeks)
	return weeks
}
