package models

import "time"

// PickSide is the side of a game an entry selected
type PickSide string

const (
	SideHome PickSide = "home"
	SideAway PickSide = "away"

	// SideNone is the sentinel written by commissioner overrides when a
	// pick is created for an entry that never made a selection.
	SideNone PickSide = "none"
)

// Pick represents one entry's selection for one game, with the
// confidence points the entry staked on it. Rows are never deleted:
// owners edit them before lock, the override engine after.
type Pick struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	EntryID uint `gorm:"not null;uniqueIndex:idx_entry_game_week,priority:1;index" json:"entry_id"`
	GameID  uint `gorm:"not null;uniqueIndex:idx_entry_game_week,priority:2" json:"game_id"`
	Week    int  `gorm:"not null;uniqueIndex:idx_entry_game_week,priority:3;index" json:"week"`

	Selection PickSide `gorm:"type:varchar(10);not null" json:"selection"`

	// Nil until the entry assigns a value; values form a permutation of
	// 1..N per (entry, week) under participant edits.
	ConfidencePoints *int `json:"confidence_points"`

	IsLocked     bool       `gorm:"default:false;index" json:"is_locked"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	PickedAt     time.Time  `json:"picked_at"`
	PointsEarned int        `gorm:"default:0" json:"points_earned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Entry *Entry `gorm:"foreignKey:EntryID" json:"entry,omitempty"`
	Game  *Game  `gorm:"foreignKey:GameID" json:"game,omitempty"`
}

// TableName specifies the table name for GORM
func (Pick) TableName() string {
	return "picks"
}

// HasPoints reports whether confidence points have been assigned.
func (p *Pick) HasPoints() bool {
	return p.ConfidencePoints != nil
}

// Points returns the assigned confidence points, or 0 when unassigned.
func (p *Pick) Points() int {
	if p.ConfidencePoints == nil {
		return 0
	}
	return *p.ConfidencePoints
}

// Won reports whether the pick's selection matches the game's winner.
// Sentinel and tie picks never win.
func (p *Pick) Won(game *Game) bool {
	if p.Selection == SideNone || game.Winner == WinnerTie || game.Winner == "" {
		return false
	}
	return string(p.Selection) == game.Winner
}
