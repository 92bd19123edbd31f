package models

import (
	"time"

	"github.com/lib/pq"
)

// League represents one confidence pool running over a season
type League struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Season   int    `gorm:"not null;index" json:"season"`
	Timezone string `gorm:"not null;default:'America/New_York'" json:"timezone"`

	// Minutes before kickoff at which missing-pick reminders fire
	ReminderOffsets pq.Int64Array `gorm:"type:integer[]" json:"reminder_offsets"`

	// When set, commissioner overrides may introduce duplicate
	// confidence points; participant edits never may.
	AllowOverrideDuplicates bool `gorm:"default:true" json:"allow_override_duplicates"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Entries []Entry `gorm:"foreignKey:LeagueID" json:"entries,omitempty"`
}

// TableName specifies the table name for GORM
func (League) TableName() string {
	return "leagues"
}

// Entry represents one participant's roster record in a league. A user
// may control multiple entries.
type Entry struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	LeagueID uint    `gorm:"not null;index" json:"league_id"`
	UserID   uint    `gorm:"not null;index" json:"user_id"`
	Name     string  `gorm:"not null" json:"name"`
	Phone    *string `json:"phone,omitempty"` // E.164, for SMS reminders

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	League *League `gorm:"foreignKey:LeagueID" json:"league,omitempty"`
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for GORM
func (Entry) TableName() string {
	return "entries"
}
