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

// PickEditability classifies what the administrative surface may do
// with one (game, pick) slot of an entry's week
type PickEditability string

const (
	// Game unlocked and no pick yet: the owner's problem, not ours.
	EditabilityNotPicked PickEditability = "not_picked"
	// Game locked with no pick: assignable through the override engine.
	EditabilityMissingLocked PickEditability = "missing_locked"
	// Game locked with a pick, entry fully picked: frozen.
	EditabilityLocked PickEditability = "locked"
	// Changeable, either because the game is still open or because the
	// entry has a missing locked pick that unlocks its whole week.
	EditabilityEditable PickEditability = "editable"
)

// GamePickState is one row of an entry's week: the game, the entry's
// pick on it if any, and what may be done about it.
type GamePickState struct {
	Game        models.Game     `json:"game"`
	Locked      bool            `json:"locked"`
	Pick        *models.Pick    `json:"pick,omitempty"`
	Editability PickEditability `json:"editability"`
}

// EntryPickState is the full per-week picture for one entry, as served
// to the administrative surface.
type EntryPickState struct {
	EntryID    uint            `json:"entry_id"`
	EntryName  string          `json:"entry_name"`
	Week       int             `json:"week"`
	TotalGames int             `json:"total_games"`
	Used       []int           `json:"used_points"`
	Locked     []int           `json:"locked_points"`
	Available  []int           `json:"available_points"`
	Games      []GamePickState `json:"games"`
}

// MissingPicksReport lists an entry's locked games without a pick.
type MissingPicksReport struct {
	Entry        models.Entry  `json:"entry"`
	MissingGames []models.Game `json:"missing_games"`
}

// PointsConflict is one standing duplicate: two or more of an entry's
// picks carrying the same confidence points. Duplicates only arise
// through commissioner overrides and stay visible here until an
// operator reassigns one side.
type PointsConflict struct {
	EntryID   uint          `json:"entry_id"`
	EntryName string        `json:"entry_name"`
	Points    int           `json:"points"`
	Picks     []models.Pick `json:"picks"`
}

// PickLockLedger derives the per-(entry, week) confidence point state
// from Pick rows and game lock state. It owns no storage of its own.
type PickLockLedger struct {
	db     *database.DB
	lock   *GameLockEvaluator
	logger *logrus.Logger

	nowFunc func() time.Time
}

func NewPickLockLedger(db *database.DB, lock *GameLockEvaluator, logger *logrus.Logger) *PickLockLedger {
	return &PickLockLedger{
		db:      db,
		lock:    lock,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// EntryPickState builds the per-game classification table for one
// entry and week. One missing locked pick unlocks the entry's whole
// week, so the commissioner can repair every game in a single pass.
func (l *PickLockLedger) EntryPickState(ctx context.Context, entryID uint, week int) (*EntryPickState, error) {
	entry, league, err := l.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	games, picks, err := l.weekRows(ctx, l.db.WithContext(ctx), entry.ID, league.Season, week)
	if err != nil {
		return nil, err
	}

	now := l.nowFunc()
	pickByGame := make(map[uint]*models.Pick, len(picks))
	for i := range picks {
		pickByGame[picks[i].GameID] = &picks[i]
	}

	hasMissingLocked := false
	for i := range games {
		if l.lock.IsLocked(&games[i], now) && pickByGame[games[i].ID] == nil {
			hasMissingLocked = true
			break
		}
	}

	state := &EntryPickState{
		EntryID:    entry.ID,
		EntryName:  entry.Name,
		Week:       week,
		TotalGames: len(games),
		Games:      make([]GamePickState, 0, len(games)),
	}

	for i := range games {
		game := games[i]
		locked := l.lock.IsLocked(&game, now)
		pick := pickByGame[game.ID]

		state.Games = append(state.Games, GamePickState{
			Game:        game,
			Locked:      locked,
			Pick:        pick,
			Editability: classifyPick(locked, pick != nil, hasMissingLocked),
		})
	}

	state.Used, state.Locked = pointSets(picks, games, l.lock, now)
	state.Available = availablePoints(len(games), state.Locked)
	return state, nil
}

// UsedPoints returns the non-null confidence points an entry has
// assigned for the week, ascending.
func (l *PickLockLedger) UsedPoints(ctx context.Context, entryID uint, week int) ([]int, error) {
	entry, league, err := l.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	games, picks, err := l.weekRows(ctx, l.db.WithContext(ctx), entry.ID, league.Season, week)
	if err != nil {
		return nil, err
	}
	used, _ := pointSets(picks, games, l.lock, l.nowFunc())
	return used, nil
}

// AvailablePoints returns {1..N} minus the entry's currently locked
// values: everything an override may still hand out. Points used by
// unlocked picks stay available because their owner can free them.
func (l *PickLockLedger) AvailablePoints(ctx context.Context, entryID uint, week int) ([]int, error) {
	entry, league, err := l.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	games, picks, err := l.weekRows(ctx, l.db.WithContext(ctx), entry.ID, league.Season, week)
	if err != nil {
		return nil, err
	}
	_, locked := pointSets(picks, games, l.lock, l.nowFunc())
	return availablePoints(len(games), locked), nil
}

// ValidatePoints enforces the permutation law for a participant edit:
// points must lie in [1, N] and must not collide with another of the
// entry's picks this week. excludePickID skips the pick being edited.
func (l *PickLockLedger) ValidatePoints(ctx context.Context, entryID uint, week int, points int, excludePickID *uint) error {
	entry, league, err := l.loadEntry(ctx, entryID)
	if err != nil {
		return err
	}
	return l.validatePointsTx(l.db.WithContext(ctx), entry.ID, league.Season, week, points, excludePickID, false)
}

// validatePointsTx is the shared permutation check, runnable inside a
// caller's transaction. relaxDuplicates skips the collision check for
// override calls on leagues that allow it.
func (l *PickLockLedger) validatePointsTx(tx *gorm.DB, entryID uint, season, week, points int, excludePickID *uint, relaxDuplicates bool) error {
	var total int64
	if err := tx.Model(&models.Game{}).
		Where("season = ? AND week = ?", season, week).
		Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count week %d games: %w", week, err)
	}

	if points < 1 || int64(points) > total {
		return fmt.Errorf("%w: %d is outside 1..%d", utils.ErrPointsOutOfRange, points, total)
	}

	if relaxDuplicates {
		return nil
	}

	query := tx.Model(&models.Pick{}).
		Where("entry_id = ? AND week = ? AND confidence_points = ?", entryID, week, points)
	if excludePickID != nil {
		query = query.Where("id <> ?", *excludePickID)
	}

	var colliding int64
	if err := query.Count(&colliding).Error; err != nil {
		return fmt.Errorf("failed to check point collisions: %w", err)
	}
	if colliding > 0 {
		return fmt.Errorf("%w: %d", utils.ErrPointsConflict, points)
	}
	return nil
}

// UsersWithMissingPicks finds every active entry of a league with at
// least one locked game lacking a pick this week.
func (l *PickLockLedger) UsersWithMissingPicks(ctx context.Context, leagueID uint, week int) ([]MissingPicksReport, error) {
	var league models.League
	if err := l.db.WithContext(ctx).First(&league, leagueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: league %d", utils.ErrNotFound, leagueID)
		}
		return nil, fmt.Errorf("failed to load league %d: %w", leagueID, err)
	}

	var entries []models.Entry
	if err := l.db.WithContext(ctx).
		Preload("User").
		Where("league_id = ? AND is_active = ?", leagueID, true).
		Order("name").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load league %d entries: %w", leagueID, err)
	}

	var games []models.Game
	if err := l.db.WithContext(ctx).
		Where("season = ? AND week = ?", league.Season, week).
		Order("kickoff_at").
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load week %d games: %w", week, err)
	}

	now := l.nowFunc()
	lockedGames := make([]models.Game, 0, len(games))
	for i := range games {
		if l.lock.IsLocked(&games[i], now) {
			lockedGames = append(lockedGames, games[i])
		}
	}
	if len(lockedGames) == 0 {
		return nil, nil
	}

	reports := make([]MissingPicksReport, 0)
	for _, entry := range entries {
		var picks []models.Pick
		if err := l.db.WithContext(ctx).
			Where("entry_id = ? AND week = ?", entry.ID, week).
			Find(&picks).Error; err != nil {
			return nil, fmt.Errorf("failed to load picks for entry %d: %w", entry.ID, err)
		}

		picked := make(map[uint]bool, len(picks))
		for _, p := range picks {
			picked[p.GameID] = true
		}

		var missing []models.Game
		for _, g := range lockedGames {
			if !picked[g.ID] {
				missing = append(missing, g)
			}
		}
		if len(missing) > 0 {
			reports = append(reports, MissingPicksReport{Entry: entry, MissingGames: missing})
		}
	}
	return reports, nil
}

// PointsConflicts lists standing duplicate confidence points per entry
// for the week. The reconciliation path: operators resolve each
// conflict by reassigning one of the colliding picks.
func (l *PickLockLedger) PointsConflicts(ctx context.Context, leagueID uint, week int) ([]PointsConflict, error) {
	var entries []models.Entry
	if err := l.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("name").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load league %d entries: %w", leagueID, err)
	}

	conflicts := make([]PointsConflict, 0)
	for _, entry := range entries {
		var picks []models.Pick
		if err := l.db.WithContext(ctx).
			Preload("Game").
			Where("entry_id = ? AND week = ? AND confidence_points IS NOT NULL", entry.ID, week).
			Find(&picks).Error; err != nil {
			return nil, fmt.Errorf("failed to load picks for entry %d: %w", entry.ID, err)
		}

		byPoints := make(map[int][]models.Pick)
		for _, p := range picks {
			byPoints[p.Points()] = append(byPoints[p.Points()], p)
		}

		values := make([]int, 0, len(byPoints))
		for v := range byPoints {
			values = append(values, v)
		}
		sort.Ints(values)

		for _, v := range values {
			if len(byPoints[v]) > 1 {
				conflicts = append(conflicts, PointsConflict{
					EntryID:   entry.ID,
					EntryName: entry.Name,
					Points:    v,
					Picks:     byPoints[v],
				})
			}
		}
	}
	return conflicts, nil
}

func (l *PickLockLedger) loadEntry(ctx context.Context, entryID uint) (*models.Entry, *models.League, error) {
	return loadEntryTx(l.db.WithContext(ctx), entryID)
}

func (l *PickLockLedger) weekRows(ctx context.Context, tx *gorm.DB, entryID uint, season, week int) ([]models.Game, []models.Pick, error) {
	var games []models.Game
	if err := tx.Where("season = ? AND week = ?", season, week).
		Order("kickoff_at").
		Find(&games).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load week %d games: %w", week, err)
	}

	var picks []models.Pick
	if err := tx.Where("entry_id = ? AND week = ?", entryID, week).
		Find(&picks).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load week %d picks: %w", week, err)
	}
	return games, picks, nil
}

// classifyPick implements the editability table.
func classifyPick(gameLocked, pickExists, entryHasMissingLocked bool) PickEditability {
	if !gameLocked {
		if pickExists {
			return EditabilityEditable
		}
		return EditabilityNotPicked
	}
	if !pickExists {
		return EditabilityMissingLocked
	}
	if entryHasMissingLocked {
		return EditabilityEditable
	}
	return EditabilityLocked
}

// pointSets derives the used and locked point value sets from an
// entry's picks. A pick's value counts as locked once its game locks.
func pointSets(picks []models.Pick, games []models.Game, lock *GameLockEvaluator, now time.Time) (used, locked []int) {
	gameByID := make(map[uint]*models.Game, len(games))
	for i := range games {
		gameByID[games[i].ID] = &games[i]
	}

	used = make([]int, 0, len(picks))
	locked = make([]int, 0, len(picks))
	for i := range picks {
		p := &picks[i]
		if !p.HasPoints() {
			continue
		}
		used = append(used, p.Points())
		game := gameByID[p.GameID]
		if game != nil && lock.IsLocked(game, now) {
			locked = append(locked, p.Points())
		}
	}
	sort.Ints(used)
	sort.Ints(locked)
	return used, locked
}

// availablePoints returns {1..n} minus the locked values.
func availablePoints(n int, locked []int) []int {
	taken := make(map[int]bool, len(locked))
	for _, v := range locked {
		taken[v] = true
	}
	available := make([]int, 0, n)
	for v := 1; v <= n; v++ {
		if !taken[v] {
			available = append(available, v)
		}
	}
	return available
}
