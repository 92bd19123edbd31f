package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
)

// ReminderService texts entrants who still have unpicked games ahead of
// kickoff. Each league configures reminder offsets in minutes; for every
// offset window an entry is reminded at most once per week, enforced
// with SETNX keys in Redis so restarts and overlapping sweeps cannot
// double-send.
type ReminderService struct {
	db       *database.DB
	cache    *CacheService
	sms      SMSService
	lock     *GameLockEvaluator
	interval time.Duration
	logger   *logrus.Entry

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool

	claimFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	nowFunc   func() time.Time
}

func NewReminderService(
	db *database.DB,
	cache *CacheService,
	sms SMSService,
	lock *GameLockEvaluator,
	interval time.Duration,
	logger *logrus.Logger,
) *ReminderService {
	s := &ReminderService{
		db:       db,
		cache:    cache,
		sms:      sms,
		lock:     lock,
		interval: interval,
		logger: logger.WithFields(logrus.Fields{
			"component": "reminder_service",
		}),
		cron:    cron.New(),
		nowFunc: time.Now,
	}
	s.claimFunc = s.claimViaCache
	return s
}

// Start begins the periodic reminder sweep.
func (s *ReminderService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("reminder service is already running")
	}

	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("interval", s.interval.String()).Info("Reminder service started")
	return nil
}

// Stop halts the sweep cadence and waits for an in-flight run.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("Timed out waiting for reminder sweep to finish")
	}

	s.isRunning = false
	s.logger.Info("Reminder service stopped")
}

func (s *ReminderService) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.Sweep(ctx); err != nil {
		s.logger.WithError(err).Error("Reminder sweep failed")
	}
}

// Sweep runs one reminder pass over every active league. Failures for
// one league or one entry are logged and never abort the rest.
func (s *ReminderService) Sweep(ctx context.Context) error {
	var leagues []models.League
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&leagues).Error; err != nil {
		return fmt.Errorf("failed to load active leagues: %w", err)
	}

	now := s.nowFunc()
	sent := 0
	for i := range leagues {
		n, err := s.sweepLeague(ctx, &leagues[i], now)
		if err != nil {
			s.logger.WithError(err).WithField("league_id", leagues[i].ID).Error("League reminder sweep failed")
			continue
		}
		sent += n
	}

	if sent > 0 {
		s.logger.WithField("sent", sent).Info("Reminder sweep finished")
	}
	return nil
}

// sweepLeague finds the league's entries with pickable missing games
// kicking off inside a configured offset window and texts each one.
func (s *ReminderService) sweepLeague(ctx context.Context, league *models.League, now time.Time) (int, error) {
	offsets := activeOffsets(league.ReminderOffsets)
	if len(offsets) == 0 {
		return 0, nil
	}

	maxOffset := offsets[len(offsets)-1]
	horizon := now.Add(time.Duration(maxOffset) * time.Minute)

	// Games kicking off inside the largest window decide which weeks
	// are worth examining at all.
	var trigger []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND status = ? AND kickoff_at > ? AND kickoff_at <= ?",
			league.Season, models.GameScheduled, now, horizon).
		Order("kickoff_at").
		Find(&trigger).Error; err != nil {
		return 0, fmt.Errorf("failed to load upcoming games: %w", err)
	}
	if len(trigger) == 0 {
		return 0, nil
	}

	weekSet := make(map[int]bool)
	weeks := make([]int, 0, 2)
	for _, g := range trigger {
		if !weekSet[g.Week] {
			weekSet[g.Week] = true
			weeks = append(weeks, g.Week)
		}
	}

	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND week IN ?", league.Season, weeks).
		Order("kickoff_at").
		Find(&games).Error; err != nil {
		return 0, fmt.Errorf("failed to load week games: %w", err)
	}

	var entries []models.Entry
	if err := s.db.WithContext(ctx).
		Where("league_id = ? AND is_active = ? AND phone IS NOT NULL", league.ID, true).
		Order("name").
		Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("failed to load entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	entryIDs := make([]uint, 0, len(entries))
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
	}

	var picks []models.Pick
	if err := s.db.WithContext(ctx).
		Where("entry_id IN ? AND week IN ?", entryIDs, weeks).
		Find(&picks).Error; err != nil {
		return 0, fmt.Errorf("failed to load picks: %w", err)
	}

	picked := make(map[uint]map[uint]bool, len(entries))
	for _, p := range picks {
		if picked[p.EntryID] == nil {
			picked[p.EntryID] = make(map[uint]bool)
		}
		picked[p.EntryID][p.GameID] = true
	}

	loc := s.leagueLocation(league)
	sent := 0
	for i := range entries {
		entry := &entries[i]
		if entry.Phone == nil || *entry.Phone == "" {
			continue
		}
		for _, week := range weeks {
			missing, firstKickoff := s.missingForWeek(games, week, picked[entry.ID], now)
			if missing == 0 || firstKickoff == nil {
				continue
			}
			if s.remind(ctx, entry, week, missing, firstKickoff.In(loc), offsets, now) {
				sent++
			}
		}
	}
	return sent, nil
}

// missingForWeek counts the entry's still-pickable games of the week
// that lack a pick and returns the earliest kickoff among them.
func (s *ReminderService) missingForWeek(games []models.Game, week int, pickedGames map[uint]bool, now time.Time) (int, *time.Time) {
	missing := 0
	var first *time.Time
	for i := range games {
		g := &games[i]
		if g.Week != week || pickedGames[g.ID] || s.lock.IsLocked(g, now) {
			continue
		}
		missing++
		if g.HasKickoff() && (first == nil || g.KickoffAt.Before(*first)) {
			first = g.KickoffAt
		}
	}
	return missing, first
}

// remind claims every offset window that currently contains the
// entry's first unpicked kickoff and sends a single SMS if at least one
// claim is fresh. Claiming all matching windows at once keeps a late
// service start from firing each window on consecutive sweeps.
func (s *ReminderService) remind(ctx context.Context, entry *models.Entry, week, missing int, firstKickoff time.Time, offsets []int64, now time.Time) bool {
	fresh := false
	for _, offset := range offsets {
		if firstKickoff.After(now.Add(time.Duration(offset) * time.Minute)) {
			continue
		}
		claimed, err := s.claimFunc(ctx, ReminderSentKey(entry.ID, week, offset), claimTTL(offset))
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"entry_id": entry.ID,
				"week":     week,
			}).Warn("Failed to claim reminder slot")
			continue
		}
		if claimed {
			fresh = true
		}
	}
	if !fresh {
		return false
	}

	if err := s.sms.SendPickReminder(*entry.Phone, week, missing, firstKickoff); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"entry_id": entry.ID,
			"week":     week,
		}).Warn("Failed to send pick reminder")
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"week":     week,
		"missing":  missing,
	}).Info("Pick reminder sent")
	return true
}

func (s *ReminderService) claimViaCache(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.cache == nil {
		return true, nil
	}
	return s.cache.SetNX(ctx, key, s.nowFunc().Unix(), ttl)
}

func (s *ReminderService) leagueLocation(league *models.League) *time.Location {
	if league.Timezone != "" {
		if loc, err := time.LoadLocation(league.Timezone); err == nil {
			return loc
		}
		s.logger.WithFields(logrus.Fields{
			"league_id": league.ID,
			"timezone":  league.Timezone,
		}).Warn("Unknown league timezone, using reference timezone")
	}
	return s.lock.Location()
}

// activeOffsets returns the positive offsets sorted ascending.
func activeOffsets(offsets []int64) []int64 {
	out := make([]int64, 0, len(offsets))
	for _, o := range offsets {
		if o > 0 {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// claimTTL keeps the dedupe key alive through the whole offset window
// plus slack for clock skew between sweeps.
func claimTTL(offset int64) time.Duration {
	return time.Duration(offset)*time.Minute + time.Hour
}
