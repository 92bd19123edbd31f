package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/utils"
)

type captureSyncer struct {
	season   int
	week     int
	calls    int
	deadline bool
	err      error
}

func (c *captureSyncer) SyncWeek(ctx context.Context, season, week int) error {
	c.calls++
	c.season = season
	c.week = week
	_, c.deadline = ctx.Deadline()
	return c.err
}

func newTestPoller(schedule ScheduleSource, syncer WeekSyncer, loc *time.Location, now time.Time) *ScoreUpdatePoller {
	resolver := NewWeekResolver(NewGameLockEvaluator(loc))
	p := NewScoreUpdatePoller(schedule, resolver, syncer, 2025, 90*time.Second, testLogger())
	p.nowFunc = func() time.Time { return now }
	return p
}

func TestPollerSyncsResolvedWeek(t *testing.T) {
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 14, 14, 0, 0, 0, loc)

	week1 := time.Date(2025, 9, 7, 13, 0, 0, 0, loc)
	week2 := time.Date(2025, 9, 14, 13, 0, 0, 0, loc)
	schedule := &stubSchedule{games: []models.Game{
		{Week: 1, KickoffAt: &week1, Status: models.GameCompleted},
		{Week: 2, KickoffAt: &week2, Status: models.GameInProgress},
	}}

	syncer := &captureSyncer{}
	p := newTestPoller(schedule, syncer, loc, now)

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, 2025, syncer.season)
	assert.Equal(t, 2, syncer.week)
	assert.True(t, syncer.deadline, "sync must run under a wall-clock timeout")
}

func TestPollerHoldsPreviousWeekWhileStillLive(t *testing.T) {
	loc := referenceLocation(t)
	// Tuesday after week 1, but a week 1 game is still being played.
	now := time.Date(2025, 9, 9, 1, 0, 0, 0, loc)

	week1 := time.Date(2025, 9, 8, 20, 15, 0, 0, loc)
	week2 := time.Date(2025, 9, 14, 13, 0, 0, 0, loc)
	schedule := &stubSchedule{games: []models.Game{
		{Week: 1, KickoffAt: &week1, Status: models.GameInProgress},
		{Week: 2, KickoffAt: &week2, Status: models.GameScheduled},
	}}

	syncer := &captureSyncer{}
	p := newTestPoller(schedule, syncer, loc, now)

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, 1, syncer.week)
}

func TestPollerReportsSyncFailure(t *testing.T) {
	loc := referenceLocation(t)
	now := time.Date(2025, 9, 14, 14, 0, 0, 0, loc)
	kickoff := time.Date(2025, 9, 14, 13, 0, 0, 0, loc)
	schedule := &stubSchedule{games: []models.Game{
		{Week: 1, KickoffAt: &kickoff, Status: models.GameInProgress},
	}}

	syncer := &captureSyncer{err: utils.WrapTransient(errors.New("timeout"))}
	p := newTestPoller(schedule, syncer, loc, now)

	err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTransient)
	assert.Equal(t, 1, syncer.calls)
}

func TestPollerReportsScheduleFailure(t *testing.T) {
	loc := referenceLocation(t)
	schedule := &stubSchedule{err: errors.New("storage unavailable")}
	syncer := &captureSyncer{}
	p := newTestPoller(schedule, syncer, loc, time.Now())

	require.Error(t, p.RunCycle(context.Background()))
	assert.Zero(t, syncer.calls)
}

func TestPollerReportsEmptySchedule(t *testing.T) {
	loc := referenceLocation(t)
	schedule := &stubSchedule{}
	syncer := &captureSyncer{}
	p := newTestPoller(schedule, syncer, loc, time.Now())

	err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrScheduleComputation)
	assert.Zero(t, syncer.calls)
}
