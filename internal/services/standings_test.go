package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
	"github.com/confpool/confidence-pool/pkg/utils"
)

func completedGame(t *testing.T, db *database.DB, season, week int, winner string) *models.Game {
	t.Helper()
	kickoff := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)
	game := &models.Game{
		Season:    season,
		Week:      week,
		KickoffAt: &kickoff,
		Status:    models.GameCompleted,
		HomeTeam:  "HME",
		AwayTeam:  "AWY",
		Winner:    winner,
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func TestWeekStandings(t *testing.T) {
	db := newTestDB(t)
	league := createLeague(t, db, 2025, true)
	alice := createEntry(t, db, league, "alice")
	bob := createEntry(t, db, league, "bob")
	createEntry(t, db, league, "carol")

	g1 := completedGame(t, db, 2025, 1, models.WinnerHome)
	g2 := completedGame(t, db, 2025, 1, models.WinnerAway)

	// alice: 2 wins, 5 points. bob: 1 win, 3 points. carol: no picks.
	createPick(t, db, alice, g1, models.SideHome, intPtr(3), true)
	createPick(t, db, alice, g2, models.SideAway, intPtr(2), true)
	createPick(t, db, bob, g1, models.SideHome, intPtr(3), true)
	createPick(t, db, bob, g2, models.SideHome, intPtr(2), true)

	svc := NewStandingsService(db, nil, testLogger())
	rows, err := svc.WeekStandings(context.Background(), league.ID, 1)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "alice", rows[0].EntryName)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 2, rows[0].Wins)
	assert.Equal(t, 5, rows[0].PointsEarned)

	assert.Equal(t, "bob", rows[1].EntryName)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 1, rows[1].Wins)
	assert.Equal(t, 1, rows[1].Losses)
	assert.Equal(t, 3, rows[1].PointsEarned)

	assert.Equal(t, "carol", rows[2].EntryName)
	assert.Equal(t, 3, rows[2].Rank)
	assert.Zero(t, rows[2].PointsEarned)
}

func TestWeekStandingsTiesShareRank(t *testing.T) {
	db := newTestDB(t)
	league := createLeague(t, db, 2025, true)
	alice := createEntry(t, db, league, "alice")
	bob := createEntry(t, db, league, "bob")
	carol := createEntry(t, db, league, "carol")

	g1 := completedGame(t, db, 2025, 1, models.WinnerHome)

	createPick(t, db, alice, g1, models.SideHome, intPtr(3), true)
	createPick(t, db, bob, g1, models.SideHome, intPtr(3), true)
	createPick(t, db, carol, g1, models.SideAway, intPtr(1), true)

	svc := NewStandingsService(db, nil, testLogger())
	rows, err := svc.WeekStandings(context.Background(), league.ID, 1)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 1, rows[1].Rank)
	// The entry after a two-way tie takes third, not second.
	assert.Equal(t, 3, rows[2].Rank)
	assert.Equal(t, "carol", rows[2].EntryName)
}

func TestSeasonStandingsAccumulateAcrossWeeks(t *testing.T) {
	db := newTestDB(t)
	league := createLeague(t, db, 2025, true)
	alice := createEntry(t, db, league, "alice")
	bob := createEntry(t, db, league, "bob")

	g1 := completedGame(t, db, 2025, 1, models.WinnerHome)
	g2 := completedGame(t, db, 2025, 2, models.WinnerAway)

	createPick(t, db, alice, g1, models.SideHome, intPtr(2), true)
	createPick(t, db, alice, g2, models.SideAway, intPtr(3), true)
	createPick(t, db, bob, g1, models.SideHome, intPtr(4), true)
	createPick(t, db, bob, g2, models.SideHome, intPtr(1), true)

	svc := NewStandingsService(db, nil, testLogger())
	rows, err := svc.SeasonStandings(context.Background(), league.ID)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].EntryName)
	assert.Equal(t, 5, rows[0].PointsEarned)
	assert.Equal(t, 2, rows[0].Wins)
	assert.Equal(t, "bob", rows[1].EntryName)
	assert.Equal(t, 4, rows[1].PointsEarned)
}

func TestStandingsIgnoreUnfinishedGames(t *testing.T) {
	db := newTestDB(t)
	league := createLeague(t, db, 2025, true)
	alice := createEntry(t, db, league, "alice")

	live := createGame(t, db, 2025, 1, timePtr(time.Now().Add(-time.Hour)), models.GameInProgress)
	createPick(t, db, alice, live, models.SideHome, intPtr(5), true)

	svc := NewStandingsService(db, nil, testLogger())
	rows, err := svc.WeekStandings(context.Background(), league.ID, 1)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].PointsEarned)
	assert.Zero(t, rows[0].Wins)
	assert.Zero(t, rows[0].Losses)
}

func TestStandingsUnknownLeague(t *testing.T) {
	db := newTestDB(t)
	svc := NewStandingsService(db, nil, testLogger())

	_, err := svc.WeekStandings(context.Background(), 9999, 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = svc.SeasonStandings(context.Background(), 9999)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
