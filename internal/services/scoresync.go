package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/internal/providers"
	"github.com/confpool/confidence-pool/pkg/database"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// ScoreboardSource fetches the external scoreboard for one week.
type ScoreboardSource interface {
	FetchScoreboard(ctx context.Context, season, week int) ([]providers.ScoreboardEvent, error)
}

// GameBroadcaster pushes game and standings changes to connected
// clients.
type GameBroadcaster interface {
	BroadcastGameUpdate(game *models.Game)
	BroadcastStandingsChanged(leagueID uint, week int)
}

// ScoreSyncService is the concrete score source behind the poller: it
// pulls the scoreboard, persists status/score changes onto Game rows,
// sweeps lock flags onto picks of started games and settles
// points_earned when games complete.
type ScoreSyncService struct {
	db       *database.DB
	cache    *CacheService
	provider ScoreboardSource
	hub      GameBroadcaster
	lock     *GameLockEvaluator
	logger   *logrus.Logger

	nowFunc func() time.Time
}

func NewScoreSyncService(
	db *database.DB,
	cache *CacheService,
	provider ScoreboardSource,
	hub GameBroadcaster,
	lock *GameLockEvaluator,
	logger *logrus.Logger,
) *ScoreSyncService {
	return &ScoreSyncService{
		db:       db,
		cache:    cache,
		provider: provider,
		hub:      hub,
		lock:     lock,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SyncWeek fetches and persists scores/statuses for every game of
// (season, week). Game save, pick lock sweep and settlement for one
// game share a transaction; one game's failure does not stop the rest
// of the slate.
func (s *ScoreSyncService) SyncWeek(ctx context.Context, season, week int) error {
	events, err := s.provider.FetchScoreboard(ctx, season, week)
	if err != nil {
		return utils.WrapTransient(err)
	}

	var games []models.Game
	if err := s.db.WithContext(ctx).
		Where("season = ? AND week = ?", season, week).
		Find(&games).Error; err != nil {
		return fmt.Errorf("failed to load week %d games: %w", week, err)
	}
	if len(games) == 0 {
		s.logger.WithFields(logrus.Fields{
			"component": "score_sync",
			"season":    season,
			"week":      week,
		}).Debug("No games on the slate, nothing to sync")
		return nil
	}

	byExternalID := make(map[string]*providers.ScoreboardEvent, len(events))
	byTeams := make(map[string]*providers.ScoreboardEvent, len(events))
	for i := range events {
		byExternalID[events[i].ExternalID] = &events[i]
		byTeams[events[i].HomeTeam+"|"+events[i].AwayTeam] = &events[i]
	}

	now := s.nowFunc()
	updated := 0
	settled := 0
	var syncErr error

	for i := range games {
		game := &games[i]

		event := byExternalID[game.ExternalID]
		if event == nil {
			event = byTeams[game.HomeTeam+"|"+game.AwayTeam]
		}

		changed := false
		if event != nil {
			changed = applyEvent(game, event)
		}

		settleNow := game.IsCompleted() && (changed || game.Winner == "")
		if settleNow && game.Winner == "" {
			game.Winner = game.ComputeWinner()
			changed = true
		}

		if changed {
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := tx.Save(game).Error; err != nil {
					return fmt.Errorf("failed to save game %d: %w", game.ID, err)
				}
				if s.lock.IsLocked(game, now) {
					if err := sweepPickLocks(tx, game.ID, now); err != nil {
						return err
					}
				}
				if settleNow {
					if err := settleGame(tx, game); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"component": "score_sync",
					"game_id":   game.ID,
				}).WithError(err).Error("Failed to persist game update")
				syncErr = err
				continue
			}

			updated++
			if settleNow {
				settled++
			}
			if s.hub != nil {
				s.hub.BroadcastGameUpdate(game)
			}
		} else if s.lock.IsLocked(game, now) {
			// Kickoff can pass without any feed change; the sweep still
			// has to move lock flags onto the picks.
			if err := sweepPickLocks(s.db.WithContext(ctx), game.ID, now); err != nil {
				s.logger.WithFields(logrus.Fields{
					"component": "score_sync",
					"game_id":   game.ID,
				}).WithError(err).Error("Failed to sweep pick locks")
				syncErr = err
			}
		}
	}

	if settled > 0 {
		s.invalidateStandings(ctx, season, week)
	}

	s.logger.WithFields(logrus.Fields{
		"component": "score_sync",
		"season":    season,
		"week":      week,
		"games":     len(games),
		"updated":   updated,
		"settled":   settled,
	}).Info("Week sync finished")

	if syncErr != nil {
		return fmt.Errorf("week %d sync finished with errors: %w", week, syncErr)
	}
	return nil
}

// applyEvent copies changed fields from a scoreboard event onto a game
// and reports whether anything changed.
func applyEvent(game *models.Game, event *providers.ScoreboardEvent) bool {
	changed := false
	if event.Status != game.Status {
		game.Status = event.Status
		changed = true
	}
	if event.HomeScore != game.HomeScore {
		game.HomeScore = event.HomeScore
		changed = true
	}
	if event.AwayScore != game.AwayScore {
		game.AwayScore = event.AwayScore
		changed = true
	}
	if event.KickoffAt != nil && (game.KickoffAt == nil || !game.KickoffAt.Equal(*event.KickoffAt)) {
		game.KickoffAt = event.KickoffAt
		changed = true
	}
	if game.ExternalID == "" && event.ExternalID != "" {
		game.ExternalID = event.ExternalID
		changed = true
	}
	return changed
}

// sweepPickLocks marks every still-unlocked pick of a locked game.
func sweepPickLocks(tx *gorm.DB, gameID uint, now time.Time) error {
	err := tx.Model(&models.Pick{}).
		Where("game_id = ? AND is_locked = ?", gameID, false).
		Updates(map[string]interface{}{
			"is_locked": true,
			"locked_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to sweep pick locks for game %d: %w", gameID, err)
	}
	return nil
}

// settleGame writes points_earned for every pick of a completed game:
// the winning side earns its confidence points, everything else
// (wrong side, sentinel picks, ties) earns zero.
func settleGame(tx *gorm.DB, game *models.Game) error {
	if game.Winner == models.WinnerHome || game.Winner == models.WinnerAway {
		err := tx.Model(&models.Pick{}).
			Where("game_id = ? AND selection = ? AND confidence_points IS NOT NULL", game.ID, game.Winner).
			Update("points_earned", gorm.Expr("confidence_points")).Error
		if err != nil {
			return fmt.Errorf("failed to settle winners for game %d: %w", game.ID, err)
		}
	}

	err := tx.Model(&models.Pick{}).
		Where("game_id = ? AND (selection <> ? OR confidence_points IS NULL)", game.ID, game.Winner).
		Update("points_earned", 0).Error
	if err != nil {
		return fmt.Errorf("failed to settle losers for game %d: %w", game.ID, err)
	}
	return nil
}

// invalidateStandings drops cached standings for every league running
// this season after a settlement changed them, and tells connected
// clients to refetch.
func (s *ScoreSyncService) invalidateStandings(ctx context.Context, season, week int) {
	var leagueIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.League{}).
		Where("season = ?", season).
		Pluck("id", &leagueIDs).Error; err != nil {
		s.logger.WithError(err).Warn("Failed to list leagues for standings invalidation")
		return
	}

	for _, id := range leagueIDs {
		if s.cache != nil {
			keys := []string{
				WeekStandingsCacheKey(id, week),
				SeasonStandingsCacheKey(id, season),
			}
			if err := s.cache.Delete(ctx, keys...); err != nil {
				s.logger.WithError(err).Warn("Failed to invalidate standings cache")
			}
		}
		if s.hub != nil {
			s.hub.BroadcastStandingsChanged(id, week)
		}
	}
}
