package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/utils"
)

func newResolver(t *testing.T) (*WeekResolver, *time.Location) {
	loc := referenceLocation(t)
	return NewWeekResolver(NewGameLockEvaluator(loc)), loc
}

func weekGame(week int, kickoff *time.Time, status models.GameStatus) models.Game {
	return models.Game{Week: week, KickoffAt: kickoff, Status: status}
}

func TestResolveCurrentWeekThreshold(t *testing.T) {
	resolver, loc := newResolver(t)

	week1Last := time.Date(2025, 9, 8, 20, 15, 0, 0, loc) // Monday night
	week2Last := time.Date(2025, 9, 15, 20, 15, 0, 0, loc)
	games := []models.Game{
		weekGame(1, timePtr(week1Last.Add(-72*time.Hour)), models.GameCompleted),
		weekGame(1, timePtr(week1Last), models.GameCompleted),
		weekGame(2, timePtr(week2Last), models.GameScheduled),
	}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"during week 1", time.Date(2025, 9, 7, 12, 0, 0, 0, loc), 1},
		{"monday night of week 1", week1Last.Add(2 * time.Hour), 1},
		{"before midnight after last kickoff", time.Date(2025, 9, 8, 23, 59, 0, 0, loc), 1},
		{"tuesday after week 1", time.Date(2025, 9, 9, 0, 1, 0, 0, loc), 2},
		{"after everything", time.Date(2025, 9, 20, 0, 0, 0, 0, loc), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week, err := resolver.ResolveCurrentWeek(games, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, week)
		})
	}
}

func TestResolveCurrentWeekHysteresis(t *testing.T) {
	resolver, loc := newResolver(t)

	// Week 1's last game finished three days ago by the threshold rule.
	week1Kick := time.Date(2025, 9, 8, 20, 15, 0, 0, loc)
	week2Kick := time.Date(2025, 9, 14, 13, 0, 0, 0, loc)
	now := time.Date(2025, 9, 11, 21, 0, 0, 0, loc)

	t.Run("advances when the new week is live", func(t *testing.T) {
		games := []models.Game{
			weekGame(1, timePtr(week1Kick), models.GameCompleted),
			weekGame(2, timePtr(week2Kick), models.GameInProgress),
		}
		week, err := resolver.ResolveCurrentWeek(games, now)
		require.NoError(t, err)
		assert.Equal(t, 2, week)
	})

	t.Run("holds while the prior week still has a live game", func(t *testing.T) {
		games := []models.Game{
			weekGame(1, timePtr(week1Kick), models.GameCompleted),
			weekGame(1, timePtr(week1Kick), models.GameInProgress), // suspended, resumed late
			weekGame(2, timePtr(week2Kick), models.GameScheduled),
		}
		week, err := resolver.ResolveCurrentWeek(games, now)
		require.NoError(t, err)
		assert.Equal(t, 1, week)
	})

	t.Run("holds on started-but-not-completed past kickoff", func(t *testing.T) {
		games := []models.Game{
			weekGame(1, timePtr(week1Kick), models.GameScheduled), // feed never flipped the status
			weekGame(2, timePtr(week2Kick), models.GameScheduled),
		}
		week, err := resolver.ResolveCurrentWeek(games, now)
		require.NoError(t, err)
		assert.Equal(t, 1, week)
	})
}

func TestResolveCurrentWeekEdgeCases(t *testing.T) {
	resolver, loc := newResolver(t)
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, loc)

	t.Run("empty schedule is a computation error", func(t *testing.T) {
		_, err := resolver.ResolveCurrentWeek(nil, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrScheduleComputation)
	})

	t.Run("week without kickoffs contributes no threshold", func(t *testing.T) {
		games := []models.Game{
			weekGame(1, nil, models.GameCompleted),
			weekGame(2, timePtr(time.Date(2025, 9, 14, 13, 0, 0, 0, loc)), models.GameScheduled),
		}
		week, err := resolver.ResolveCurrentWeek(games, now)
		require.NoError(t, err)
		assert.Equal(t, 2, week)
	})

	t.Run("all thresholds passed returns last week", func(t *testing.T) {
		games := []models.Game{
			weekGame(1, timePtr(time.Date(2025, 9, 1, 13, 0, 0, 0, loc)), models.GameCompleted),
			weekGame(2, timePtr(time.Date(2025, 9, 8, 13, 0, 0, 0, loc)), models.GameCompleted),
		}
		week, err := resolver.ResolveCurrentWeek(games, now)
		require.NoError(t, err)
		assert.Equal(t, 2, week)
	})
}
