package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
	"github.com/confpool/confidence-pool/pkg/utils"
)

const standingsCacheTTL = 5 * time.Minute

// StandingRow is one entry's line in a standings table.
type StandingRow struct {
	Rank         int    `json:"rank"`
	EntryID      uint   `json:"entry_id"`
	EntryName    string `json:"entry_name"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	PointsEarned int    `json:"points_earned"`
}

// StandingsService computes weekly and season standings from settled picks.
// Results are cached until the next settlement invalidates them.
type StandingsService struct {
	db     *database.DB
	cache  *CacheService
	logger *logrus.Entry
}

func NewStandingsService(db *database.DB, cache *CacheService, logger *logrus.Logger) *StandingsService {
	return &StandingsService{
		db:    db,
		cache: cache,
		logger: logger.WithFields(logrus.Fields{
			"component": "standings_service",
		}),
	}
}

// WeekStandings returns the ranked standings for a single week of a league.
func (s *StandingsService) WeekStandings(ctx context.Context, leagueID uint, week int) ([]StandingRow, error) {
	cacheKey := WeekStandingsCacheKey(leagueID, week)
	if s.cache != nil {
		var cached []StandingRow
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	league, entries, err := s.loadLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND week = ? AND status = ?", league.Season, week, models.GameCompleted).
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load completed games: %w", err)
	}

	rows, err := s.tally(ctx, entries, games)
	if err != nil {
		return nil, err
	}

	s.store(ctx, cacheKey, rows)
	return rows, nil
}

// SeasonStandings returns the ranked cumulative standings for a league's season.
func (s *StandingsService) SeasonStandings(ctx context.Context, leagueID uint) ([]StandingRow, error) {
	league, entries, err := s.loadLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	cacheKey := SeasonStandingsCacheKey(leagueID, league.Season)
	if s.cache != nil {
		var cached []StandingRow
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND status = ?", league.Season, models.GameCompleted).
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load completed games: %w", err)
	}

	rows, err := s.tally(ctx, entries, games)
	if err != nil {
		return nil, err
	}

	s.store(ctx, cacheKey, rows)
	return rows, nil
}

func (s *StandingsService) loadLeague(ctx context.Context, leagueID uint) (*models.League, []models.Entry, error) {
	var league models.League
	if err := s.db.WithContext(ctx).First(&league, leagueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: league %d", utils.ErrNotFound, leagueID)
		}
		return nil, nil, fmt.Errorf("failed to load league: %w", err)
	}

	var entries []models.Entry
	if err := s.db.WithContext(ctx).
		Where("league_id = ? AND is_active = ?", leagueID, true).
		Order("name").
		Find(&entries).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load entries: %w", err)
	}

	return &league, entries, nil
}

// tally scores every pick the entries made on the given completed games.
// Entries with no pick on a game are simply not counted for it.
func (s *StandingsService) tally(ctx context.Context, entries []models.Entry, games []models.Game) ([]StandingRow, error) {
	rows := make([]StandingRow, 0, len(entries))
	byEntry := make(map[uint]*StandingRow, len(entries))
	for _, entry := range entries {
		rows = append(rows, StandingRow{EntryID: entry.ID, EntryName: entry.Name})
		byEntry[entry.ID] = &rows[len(rows)-1]
	}

	if len(entries) == 0 || len(games) == 0 {
		s.rank(rows)
		return rows, nil
	}

	gamesByID := make(map[uint]models.Game, len(games))
	gameIDs := make([]uint, 0, len(games))
	for _, game := range games {
		gamesByID[game.ID] = game
		gameIDs = append(gameIDs, game.ID)
	}

	entryIDs := make([]uint, 0, len(entries))
	for _, entry := range entries {
		entryIDs = append(entryIDs, entry.ID)
	}

	var picks []models.Pick
	if err := s.db.WithContext(ctx).
		Where("entry_id IN ? AND game_id IN ?", entryIDs, gameIDs).
		Find(&picks).Error; err != nil {
		return nil, fmt.Errorf("failed to load picks: %w", err)
	}

	for _, pick := range picks {
		row, ok := byEntry[pick.EntryID]
		if !ok {
			continue
		}
		game, ok := gamesByID[pick.GameID]
		if !ok {
			continue
		}
		if pick.Won(&game) {
			row.Wins++
			row.PointsEarned += pick.Points()
		} else {
			row.Losses++
		}
	}

	s.rank(rows)
	return rows, nil
}

// rank sorts rows and assigns competition ranks: entries tied on points
// and wins share a rank, and the next distinct entry takes its position.
func (s *StandingsService) rank(rows []StandingRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PointsEarned != rows[j].PointsEarned {
			return rows[i].PointsEarned > rows[j].PointsEarned
		}
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].EntryName < rows[j].EntryName
	})

	for i := range rows {
		if i > 0 && rows[i].PointsEarned == rows[i-1].PointsEarned && rows[i].Wins == rows[i-1].Wins {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
}

func (s *StandingsService) store(ctx context.Context, key string, rows []StandingRow) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, rows, standingsCacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache standings")
	}
}
