package services

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func referenceLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.League{},
		&models.Entry{},
		&models.Game{},
		&models.Pick{},
		&models.AuditRecord{},
	))

	return &database.DB{DB: db}
}

func createLeague(t *testing.T, db *database.DB, season int, allowDuplicates bool) *models.League {
	t.Helper()
	league := &models.League{
		Name:                    "Test Pool",
		Season:                  season,
		Timezone:                "America/New_York",
		AllowOverrideDuplicates: allowDuplicates,
		IsActive:                true,
	}
	require.NoError(t, db.Create(league).Error)
	if !allowDuplicates {
		// Zero-valued fields with default tags are skipped on create.
		require.NoError(t, db.Model(league).Update("allow_override_duplicates", false).Error)
	}
	return league
}

func createEntry(t *testing.T, db *database.DB, league *models.League, name string) *models.Entry {
	t.Helper()
	user := &models.User{
		Email: name + "@example.com",
		Name:  name,
		Role:  models.RoleParticipant,
	}
	require.NoError(t, db.Create(user).Error)

	entry := &models.Entry{
		LeagueID: league.ID,
		UserID:   user.ID,
		Name:     name,
		IsActive: true,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func createGame(t *testing.T, db *database.DB, season, week int, kickoff *time.Time, status models.GameStatus) *models.Game {
	t.Helper()
	game := &models.Game{
		Season:    season,
		Week:      week,
		KickoffAt: kickoff,
		Status:    status,
		HomeTeam:  "HME",
		AwayTeam:  "AWY",
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func createPick(t *testing.T, db *database.DB, entry *models.Entry, game *models.Game, side models.PickSide, points *int, locked bool) *models.Pick {
	t.Helper()
	pick := &models.Pick{
		EntryID:          entry.ID,
		GameID:           game.ID,
		Week:             game.Week,
		Selection:        side,
		ConfidencePoints: points,
		IsLocked:         locked,
		PickedAt:         time.Now().UTC(),
	}
	if locked {
		now := time.Now().UTC()
		pick.LockedAt = &now
	}
	require.NoError(t, db.Create(pick).Error)
	return pick
}

func intPtr(v int) *int {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
