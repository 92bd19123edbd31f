package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
)

// ScheduleSource provides the schedule snapshot the scheduler and
// poller evaluate against. The returned slice is a point-in-time copy;
// callers treat it as immutable for the duration of one cycle.
type ScheduleSource interface {
	SeasonSnapshot(ctx context.Context, season int) ([]models.Game, error)
}

// ScheduleService reads game schedule data. Writes happen elsewhere:
// schedule import creates rows, the score sync service updates them.
type ScheduleService struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewScheduleService(db *database.DB, logger *logrus.Logger) *ScheduleService {
	return &ScheduleService{
		db:     db,
		logger: logger,
	}
}

// SeasonSnapshot returns every game of the season ordered by week and
// kickoff.
func (s *ScheduleService) SeasonSnapshot(ctx context.Context, season int) ([]models.Game, error) {
	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ?", season).
		Order("week, kickoff_at").
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load season %d schedule: %w", season, err)
	}
	return games, nil
}

// WeekGames returns the slate for one week.
func (s *ScheduleService) WeekGames(ctx context.Context, season, week int) ([]models.Game, error) {
	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND week = ?", season, week).
		Order("kickoff_at").
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load week %d games: %w", week, err)
	}
	return games, nil
}

// GameCount returns N for a week, the upper bound of valid confidence
// points. Recomputed from the live schedule on every call so a late
// slate change shifts the valid range immediately.
func (s *ScheduleService) GameCount(ctx context.Context, season, week int) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("season = ? AND week = ?", season, week).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count week %d games: %w", week, err)
	}
	return int(count), nil
}
