package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// WeekSyncer fetches and persists scores/statuses for one week. The
// poller does not depend on the score source's wire format, only on
// this operation.
type WeekSyncer interface {
	SyncWeek(ctx context.Context, season, week int) error
}

// ScoreUpdatePoller runs one bounded polling cycle: resolve the target
// week, then sync its scores under a hard wall-clock timeout. A cycle
// never takes the scheduler down with it; failures are logged and
// reported back as a value.
type ScoreUpdatePoller struct {
	schedule ScheduleSource
	resolver *WeekResolver
	syncer   WeekSyncer
	season   int
	timeout  time.Duration
	logger   *logrus.Logger
	nowFunc  func() time.Time
}

func NewScoreUpdatePoller(schedule ScheduleSource, resolver *WeekResolver, syncer WeekSyncer, season int, timeout time.Duration, logger *logrus.Logger) *ScoreUpdatePoller {
	return &ScoreUpdatePoller{
		schedule: schedule,
		resolver: resolver,
		syncer:   syncer,
		season:   season,
		timeout:  timeout,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// RunCycle executes one poll cycle. The schedule may have changed since
// the scheduler last looked at it, so the live-game hysteresis is
// re-applied here at call time: if the resolved week shows no live game
// but the previous week still does, the previous week is polled
// instead.
func (p *ScoreUpdatePoller) RunCycle(ctx context.Context) error {
	now := p.nowFunc()

	games, err := p.schedule.SeasonSnapshot(ctx, p.season)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "score_poller",
			"season":    p.season,
		}).WithError(err).Error("Poll cycle could not load schedule")
		return err
	}

	week, err := p.resolver.ResolveCurrentWeek(games, now)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "score_poller",
			"season":    p.season,
		}).WithError(err).Error("Poll cycle could not resolve current week")
		return err
	}

	target := week
	if !p.resolver.HasLiveGame(games, target, now) && p.resolver.HasLiveGame(games, target-1, now) {
		target--
	}

	syncCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.nowFunc()
	if err := p.syncer.SyncWeek(syncCtx, p.season, target); err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "score_poller",
			"season":    p.season,
			"week":      target,
			"duration":  p.nowFunc().Sub(start).String(),
		}).WithError(err).Error("Score sync failed")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"component": "score_poller",
		"season":    p.season,
		"week":      target,
		"duration":  p.nowFunc().Sub(start).String(),
	}).Info("Score sync completed")
	return nil
}
