package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
)

type sentReminder struct {
	phone   string
	week    int
	missing int
}

type captureSMS struct {
	reminders []sentReminder
	err       error
}

func (c *captureSMS) SendPickReminder(phone string, week, missing int, firstKickoff time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.reminders = append(c.reminders, sentReminder{phone: phone, week: week, missing: missing})
	return nil
}

func (c *captureSMS) SendMessage(phone, message string) error { return nil }

func newTestReminder(db *database.DB, sms SMSService, loc *time.Location, now time.Time) (*ReminderService, map[string]bool) {
	s := NewReminderService(db, nil, sms, NewGameLockEvaluator(loc), time.Minute, testLogger())
	s.nowFunc = func() time.Time { return now }

	claims := make(map[string]bool)
	s.claimFunc = func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		if claims[key] {
			return false, nil
		}
		claims[key] = true
		return true, nil
	}
	return s, claims
}

func phonedEntry(t *testing.T, db *database.DB, league *models.League, name, phone string) *models.Entry {
	t.Helper()
	entry := createEntry(t, db, league, name)
	entry.Phone = &phone
	require.NoError(t, db.Save(entry).Error)
	return entry
}

func reminderLeague(season int) *models.League {
	return &models.League{
		ID:              1,
		Name:            "Test Pool",
		Season:          season,
		Timezone:        "America/New_York",
		ReminderOffsets: pq.Int64Array{60, 1440},
		IsActive:        true,
	}
}

func TestReminderSweepLeague(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 12, 30, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	soon := createGame(t, db, 2025, 1, timePtr(now.Add(30*time.Minute)), models.GameScheduled)
	later := createGame(t, db, 2025, 1, timePtr(now.Add(5*time.Hour)), models.GameScheduled)

	phonedEntry(t, db, dbLeague, "missing", "+15551230001")
	complete := phonedEntry(t, db, dbLeague, "complete", "+15551230002")
	createEntry(t, db, dbLeague, "nophone")

	createPick(t, db, complete, soon, models.SideHome, intPtr(2), false)
	createPick(t, db, complete, later, models.SideAway, intPtr(1), false)

	sms := &captureSMS{}
	svc, _ := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, sms.reminders, 1)
	assert.Equal(t, "+15551230001", sms.reminders[0].phone)
	assert.Equal(t, 1, sms.reminders[0].week)
	assert.Equal(t, 2, sms.reminders[0].missing)

	// The dedupe claim blocks a second pass from resending.
	sent, err = svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, sms.reminders, 1)
}

func TestReminderClaimsEveryMatchingWindowAtOnce(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 12, 30, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	createGame(t, db, 2025, 1, timePtr(now.Add(30*time.Minute)), models.GameScheduled)
	entry := phonedEntry(t, db, dbLeague, "missing", "+15551230001")

	sms := &captureSMS{}
	svc, claims := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Kickoff sits inside both the 60m and 1440m windows, so one sweep
	// claims both and the late start does not fire twice.
	assert.True(t, claims[ReminderSentKey(entry.ID, 1, 60)])
	assert.True(t, claims[ReminderSentKey(entry.ID, 1, 1440)])
}

func TestReminderOutsideAllWindows(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	// Beyond the largest offset (1440m), nothing triggers.
	createGame(t, db, 2025, 1, timePtr(now.Add(48*time.Hour)), models.GameScheduled)
	phonedEntry(t, db, dbLeague, "missing", "+15551230001")

	sms := &captureSMS{}
	svc, _ := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, sms.reminders)
}

func TestReminderIgnoresLockedGames(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 14, 0, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	createGame(t, db, 2025, 1, timePtr(now.Add(-time.Hour)), models.GameInProgress)
	upcoming := createGame(t, db, 2025, 1, timePtr(now.Add(30*time.Minute)), models.GameScheduled)

	// The entry only lacks a pick for the started game; nothing is still
	// pickable, so no reminder goes out.
	entry := phonedEntry(t, db, dbLeague, "alice", "+15551230001")
	createPick(t, db, entry, upcoming, models.SideHome, intPtr(1), false)

	sms := &captureSMS{}
	svc, _ := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, sms.reminders)
}

func TestReminderNoConfiguredOffsets(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 12, 30, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	createGame(t, db, 2025, 1, timePtr(now.Add(30*time.Minute)), models.GameScheduled)
	phonedEntry(t, db, dbLeague, "missing", "+15551230001")

	sms := &captureSMS{}
	svc, _ := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID
	league.ReminderOffsets = nil

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, sms.reminders)
}

func TestReminderSendFailureNotCounted(t *testing.T) {
	db := newTestDB(t)
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 7, 12, 30, 0, 0, loc)

	dbLeague := createLeague(t, db, 2025, true)
	createGame(t, db, 2025, 1, timePtr(now.Add(30*time.Minute)), models.GameScheduled)
	phonedEntry(t, db, dbLeague, "missing", "+15551230001")

	sms := &captureSMS{err: errors.New("carrier rejected")}
	svc, _ := newTestReminder(db, sms, loc, now)

	league := reminderLeague(2025)
	league.ID = dbLeague.ID

	sent, err := svc.sweepLeague(context.Background(), league, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestActiveOffsets(t *testing.T) {
	assert.Equal(t, []int64{30, 60, 1440}, activeOffsets(pq.Int64Array{1440, -5, 60, 0, 30}))
	assert.Empty(t, activeOffsets(nil))
}

func TestReminderMessage(t *testing.T) {
	loc := referenceLocation(t)
	kickoff := time.Date(2025, 9, 7, 13, 0, 0, 0, loc)

	msg := ReminderMessage(1, 3, kickoff)
	assert.Contains(t, msg, "3 unpicked games")
	assert.Contains(t, msg, "week 1")
	assert.Contains(t, msg, "Sun 1:00 PM")

	single := ReminderMessage(2, 1, kickoff)
	assert.Contains(t, single, "1 unpicked game for week 2")
}
