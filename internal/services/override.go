package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/database"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// CommissionerOverrideEngine is the administrative correction path for
// locked picks. Every operation runs its precondition reads and both
// writes (Pick plus AuditRecord) inside one transaction: concurrent
// calls racing on the same rows are settled by the store, and a failed
// attempt leaves no trace, audit rows included.
type CommissionerOverrideEngine struct {
	db     *database.DB
	ledger *PickLockLedger
	lock   *GameLockEvaluator
	logger *logrus.Logger

	nowFunc func() time.Time
	idFunc  func() uuid.UUID
}

func NewCommissionerOverrideEngine(db *database.DB, ledger *PickLockLedger, lock *GameLockEvaluator, logger *logrus.Logger) *CommissionerOverrideEngine {
	return &CommissionerOverrideEngine{
		db:      db,
		ledger:  ledger,
		lock:    lock,
		logger:  logger,
		nowFunc: time.Now,
		idFunc:  uuid.New,
	}
}

// AssignMissingPick creates a pick on a locked game for an entry that
// never made one. The pick carries the sentinel "none" selection and
// is born locked.
//
// Preconditions, checked in order inside the transaction: the game
// exists for (game, week, season); the game is locked; the entry has
// no pick for it yet; points lie in [1, N] for the week; and, unless
// the league relaxes duplicates for overrides, the value is not
// already used by another of the entry's picks.
func (e *CommissionerOverrideEngine) AssignMissingPick(ctx context.Context, entryID, gameID uint, week, points int, actingUserID uint, reason string) (*models.Pick, error) {
	var created models.Pick

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := e.nowFunc()

		entry, league, err := loadEntryTx(tx, entryID)
		if err != nil {
			return err
		}

		var game models.Game
		if err := tx.Where("id = ? AND week = ? AND season = ?", gameID, week, league.Season).
			First(&game).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: game %d in week %d of season %d", utils.ErrGameNotFound, gameID, week, league.Season)
			}
			return fmt.Errorf("failed to load game %d: %w", gameID, err)
		}

		if !e.lock.IsLocked(&game, now) {
			return fmt.Errorf("%w: game %d has not started", utils.ErrGameNotLocked, gameID)
		}

		var existing int64
		if err := tx.Model(&models.Pick{}).
			Where("entry_id = ? AND game_id = ? AND week = ?", entry.ID, gameID, week).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check for existing pick: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: entry %d already has a pick for game %d in week %d", utils.ErrPickAlreadyExists, entry.ID, gameID, week)
		}

		if err := e.ledger.validatePointsTx(tx, entry.ID, league.Season, week, points, nil, league.AllowOverrideDuplicates); err != nil {
			return err
		}

		pts := points
		created = models.Pick{
			EntryID:          entry.ID,
			GameID:           gameID,
			Week:             week,
			Selection:        models.SideNone,
			ConfidencePoints: &pts,
			IsLocked:         true,
			LockedAt:         &now,
			PickedAt:         now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create pick: %w", err)
		}

		newValue, err := json.Marshal(map[string]interface{}{
			"selection":         created.Selection,
			"confidence_points": points,
			"is_locked":         true,
		})
		if err != nil {
			return fmt.Errorf("failed to encode audit value: %w", err)
		}

		gid := gameID
		pid := created.ID
		audit := models.AuditRecord{
			EventID:      e.idFunc(),
			Action:       models.AuditAssignMissingPick,
			EntryID:      entry.ID,
			GameID:       &gid,
			PickID:       &pid,
			Week:         week,
			NewValue:     datatypes.JSON(newValue),
			ActingUserID: actingUserID,
			Reason:       reason,
			IsOverride:   true,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"component":   "override_engine",
		"entry_id":    entryID,
		"game_id":     gameID,
		"week":        week,
		"points":      points,
		"acting_user": actingUserID,
	}).Info("Assigned missing pick")
	return &created, nil
}

// UpdatePickPoints changes the confidence points on an existing pick,
// locked or not, and appends an audit record carrying the prior value.
func (e *CommissionerOverrideEngine) UpdatePickPoints(ctx context.Context, pickID uint, newPoints int, actingUserID uint, reason string) (*models.Pick, error) {
	var updated models.Pick

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pick models.Pick
		if err := tx.First(&pick, pickID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: pick %d", utils.ErrPickNotFound, pickID)
			}
			return fmt.Errorf("failed to load pick %d: %w", pickID, err)
		}

		_, league, err := loadEntryTx(tx, pick.EntryID)
		if err != nil {
			return err
		}

		excluded := pick.ID
		if err := e.ledger.validatePointsTx(tx, pick.EntryID, league.Season, pick.Week, newPoints, &excluded, league.AllowOverrideDuplicates); err != nil {
			return err
		}

		oldValue, err := json.Marshal(map[string]interface{}{
			"confidence_points": pick.ConfidencePoints,
		})
		if err != nil {
			return fmt.Errorf("failed to encode audit value: %w", err)
		}
		newValue, err := json.Marshal(map[string]interface{}{
			"confidence_points": newPoints,
		})
		if err != nil {
			return fmt.Errorf("failed to encode audit value: %w", err)
		}

		pts := newPoints
		pick.ConfidencePoints = &pts
		if err := tx.Save(&pick).Error; err != nil {
			return fmt.Errorf("failed to update pick %d: %w", pickID, err)
		}

		gid := pick.GameID
		pid := pick.ID
		audit := models.AuditRecord{
			EventID:      e.idFunc(),
			Action:       models.AuditUpdatePickPoints,
			EntryID:      pick.EntryID,
			GameID:       &gid,
			PickID:       &pid,
			Week:         pick.Week,
			OldValue:     datatypes.JSON(oldValue),
			NewValue:     datatypes.JSON(newValue),
			ActingUserID: actingUserID,
			Reason:       reason,
			IsOverride:   true,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}

		updated = pick
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"component":   "override_engine",
		"pick_id":     pickID,
		"points":      newPoints,
		"acting_user": actingUserID,
	}).Info("Updated pick points")
	return &updated, nil
}

// loadEntryTx loads an entry with its league inside the caller's
// transaction.
func loadEntryTx(tx *gorm.DB, entryID uint) (*models.Entry, *models.League, error) {
	var entry models.Entry
	if err := tx.Preload("League").First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: entry %d", utils.ErrNotFound, entryID)
		}
		return nil, nil, fmt.Errorf("failed to load entry %d: %w", entryID, err)
	}
	if entry.League == nil {
		return nil, nil, fmt.Errorf("%w: league for entry %d", utils.ErrNotFound, entryID)
	}
	return &entry, entry.League, nil
}
