package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/models"
)

// SchedulerState names the live window scheduler's current mode
type SchedulerState string

const (
	SchedulerIdle    SchedulerState = "idle"    // no timers armed, no upcoming kickoffs
	SchedulerArmed   SchedulerState = "armed"   // one-shot timer set for the next wake
	SchedulerPolling SchedulerState = "polling" // repeating poll cycle active
	SchedulerStopped SchedulerState = "stopped" // terminal, set by Stop
)

// PollFunc runs one score polling cycle.
type PollFunc func(ctx context.Context) error

// SchedulerConfig carries the timing knobs for the live window scheduler.
type SchedulerConfig struct {
	Season         int
	PreRoll        time.Duration // how long before kickoff polling begins
	PollInterval   time.Duration // poll cadence while a game is live
	SafetyInterval time.Duration // unconditional re-evaluation cadence
	Backoff        time.Duration // retry delay after a failed evaluation
}

// SchedulerStatus is a point-in-time snapshot for the health surface.
type SchedulerStatus struct {
	State      SchedulerState `json:"state"`
	NextWake   *time.Time     `json:"next_wake,omitempty"`
	InFlight   bool           `json:"in_flight"`
	RunCount   int64          `json:"run_count"`
	ErrorCount int64          `json:"error_count"`
	LastError  string         `json:"last_error,omitempty"`
}

// LiveWindowScheduler decides when to poll the score source. While any
// game is inside its active window (pre-roll before kickoff until the
// feed marks it completed) it runs the poll cycle on a fixed cadence;
// otherwise it arms a one-shot timer for the next kickoff, or goes
// idle when the season has none left. An hourly safety-net tick
// re-runs the decision unconditionally so a missed transition heals
// itself.
//
// All transitions funnel through one tick function guarded by a single
// in-flight flag: a tick arriving while an evaluation or poll cycle is
// running is dropped, never queued, so no two cycles overlap.
type LiveWindowScheduler struct {
	schedule ScheduleSource
	poll     PollFunc
	logger   *logrus.Logger

	season         int
	preRoll        time.Duration
	pollInterval   time.Duration
	safetyInterval time.Duration
	backoff        time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      SchedulerState
	started    bool
	pollEntry  cron.EntryID
	armTimer   *time.Timer
	retryTimer *time.Timer
	inFlight   bool
	nextWake   time.Time
	runCount   int64
	errorCount int64
	lastError  string

	nowFunc func() time.Time
}

// NewLiveWindowScheduler creates a scheduler. It does nothing until
// Start is called.
func NewLiveWindowScheduler(
	schedule ScheduleSource,
	poll PollFunc,
	cfg SchedulerConfig,
	logger *logrus.Logger,
) *LiveWindowScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &LiveWindowScheduler{
		schedule:       schedule,
		poll:           poll,
		logger:         logger,
		season:         cfg.Season,
		preRoll:        cfg.PreRoll,
		pollInterval:   cfg.PollInterval,
		safetyInterval: cfg.SafetyInterval,
		backoff:        cfg.Backoff,
		cron:           cron.New(),
		ctx:            ctx,
		cancel:         cancel,
		state:          SchedulerIdle,
		nowFunc:        time.Now,
	}
}

// Start begins live window monitoring. The host calls this once at
// process startup.
func (s *LiveWindowScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SchedulerStopped {
		return fmt.Errorf("live window scheduler has been stopped")
	}
	if s.started {
		return fmt.Errorf("live window scheduler is already running")
	}

	schedule := fmt.Sprintf("@every %s", s.safetyInterval.String())
	if _, err := s.cron.AddFunc(schedule, func() { s.tick("safety_net") }); err != nil {
		return fmt.Errorf("failed to schedule safety net: %w", err)
	}

	s.cron.Start()
	s.started = true

	// Initial arm/poll decision
	go s.tick("startup")

	s.logger.WithField("component", "live_scheduler").Info("Live window scheduler started")
	return nil
}

// Stop cancels every pending timer and moves the scheduler to its
// terminal state. It waits briefly for an in-flight cycle to finish.
func (s *LiveWindowScheduler) Stop() {
	s.mu.Lock()
	if s.state == SchedulerStopped {
		s.mu.Unlock()
		return
	}
	s.state = SchedulerStopped
	s.started = false
	s.leavePollingLocked()
	s.stopOneShotsLocked()
	s.nextWake = time.Time{}
	s.mu.Unlock()

	s.cancel()
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "live_scheduler").Warn("Timed out waiting for in-flight cycle to finish")
	}

	s.logger.WithField("component", "live_scheduler").Info("Live window scheduler stopped")
}

// Status reports the scheduler's current state for the health surface.
func (s *LiveWindowScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		State:      s.state,
		InFlight:   s.inFlight,
		RunCount:   s.runCount,
		ErrorCount: s.errorCount,
		LastError:  s.lastError,
	}
	if !s.nextWake.IsZero() {
		wake := s.nextWake
		status.NextWake = &wake
	}
	return status
}

// tick is the single entry point for every timer: the safety net, the
// poll cadence, the arm one-shot and the failure retry all land here.
// The in-flight flag serializes them; a tick that finds one running
// returns immediately.
func (s *LiveWindowScheduler) tick(source string) {
	s.mu.Lock()
	if s.state == SchedulerStopped {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.logger.WithFields(logrus.Fields{
			"component": "live_scheduler",
			"source":    source,
		}).Debug("Cycle already in flight, dropping tick")
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	now := s.nowFunc()
	games, err := s.schedule.SeasonSnapshot(s.ctx, s.season)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"component": "live_scheduler",
			"source":    source,
			"backoff":   s.backoff.String(),
		}).WithError(err).Error("Schedule evaluation failed, retrying after backoff")
		s.mu.Lock()
		s.errorCount++
		s.lastError = err.Error()
		s.scheduleRetryLocked(now)
		s.mu.Unlock()
		return
	}

	if s.anyGameActive(games, now) {
		s.enterPolling(now)
		s.runPollCycle()
		return
	}

	s.armForNext(games, now)
}

// runPollCycle executes one poll while the in-flight flag is held. A
// failed cycle is recorded and logged but never changes state; the
// next tick simply tries again.
func (s *LiveWindowScheduler) runPollCycle() {
	err := s.poll(s.ctx)

	s.mu.Lock()
	s.runCount++
	if err != nil {
		s.errorCount++
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithField("component", "live_scheduler").WithError(err).Warn("Poll cycle finished with error")
	}
}

// enterPolling starts the repeating poll cadence if it is not already
// running and cancels any pending one-shots.
func (s *LiveWindowScheduler) enterPolling(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SchedulerStopped {
		return
	}
	s.stopOneShotsLocked()
	s.nextWake = now.Add(s.pollInterval)

	if s.pollEntry != 0 {
		return
	}

	spec := fmt.Sprintf("@every %s", s.pollInterval.String())
	id, err := s.cron.AddFunc(spec, func() { s.tick("poll") })
	if err != nil {
		s.logger.WithField("component", "live_scheduler").WithError(err).Error("Failed to start poll cadence")
		return
	}
	s.pollEntry = id
	s.state = SchedulerPolling
	s.logger.WithFields(logrus.Fields{
		"component": "live_scheduler",
		"interval":  s.pollInterval.String(),
	}).Info("Entering polling window")
}

// armForNext leaves the polling window and arms a one-shot for the
// next kickoff's pre-roll boundary, or goes idle when none remains.
func (s *LiveWindowScheduler) armForNext(games []models.Game, now time.Time) {
	next, ok := s.nextWindowStart(games, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SchedulerStopped {
		return
	}
	s.leavePollingLocked()
	s.stopOneShotsLocked()

	if !ok {
		s.state = SchedulerIdle
		s.nextWake = time.Time{}
		s.logger.WithField("component", "live_scheduler").Info("No upcoming kickoffs, going idle")
		return
	}

	until := next.Sub(now)
	if until < 0 {
		until = 0
	}
	s.armTimer = time.AfterFunc(until, func() { s.tick("kickoff") })
	s.state = SchedulerArmed
	s.nextWake = next
	s.logger.WithFields(logrus.Fields{
		"component": "live_scheduler",
		"next_wake": next.Format(time.RFC3339),
	}).Info("Armed for next kickoff window")
}

// scheduleRetryLocked tears down active timers and arms a single
// retry one-shot after the configured backoff.
func (s *LiveWindowScheduler) scheduleRetryLocked(now time.Time) {
	s.leavePollingLocked()
	s.stopOneShotsLocked()
	s.retryTimer = time.AfterFunc(s.backoff, func() { s.tick("retry") })
	s.state = SchedulerArmed
	s.nextWake = now.Add(s.backoff)
}

func (s *LiveWindowScheduler) leavePollingLocked() {
	if s.pollEntry == 0 {
		return
	}
	s.cron.Remove(s.pollEntry)
	s.pollEntry = 0
	s.logger.WithField("component", "live_scheduler").Info("Leaving polling window")
}

func (s *LiveWindowScheduler) stopOneShotsLocked() {
	if s.armTimer != nil {
		s.armTimer.Stop()
		s.armTimer = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// gameActive reports whether a game is inside its live monitoring
// window: [kickoff - pre-roll, forever) until the feed marks it
// completed. A scheduled game without a kickoff only becomes active
// once its status flips to in_progress.
func (s *LiveWindowScheduler) gameActive(g *models.Game, now time.Time) bool {
	switch g.Status {
	case models.GameInProgress:
		return true
	case models.GameCompleted:
		return false
	default:
		return g.HasKickoff() && !now.Before(g.KickoffAt.Add(-s.preRoll))
	}
}

func (s *LiveWindowScheduler) anyGameActive(games []models.Game, now time.Time) bool {
	for i := range games {
		if s.gameActive(&games[i], now) {
			return true
		}
	}
	return false
}

// nextWindowStart finds the earliest pre-roll boundary still ahead of
// now among scheduled games.
func (s *LiveWindowScheduler) nextWindowStart(games []models.Game, now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for i := range games {
		g := &games[i]
		if g.Status != models.GameScheduled || !g.HasKickoff() {
			continue
		}
		start := g.KickoffAt.Add(-s.preRoll)
		if start.After(now) && (!found || start.Before(next)) {
			next = start
			found = true
		}
	}
	return next, found
}
