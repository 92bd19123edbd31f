package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditAction identifies the override operation recorded
type AuditAction string

const (
	AuditAssignMissingPick AuditAction = "assign_missing_pick"
	AuditUpdatePickPoints  AuditAction = "update_pick_points"
)

// AuditRecord is an append-only trail entry written in the same
// transaction as the mutation it describes. Records are never updated
// or deleted.
type AuditRecord struct {
	ID      uint        `gorm:"primaryKey" json:"id"`
	EventID uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"event_id"`
	Action  AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	EntryID uint  `gorm:"not null;index" json:"entry_id"`
	GameID  *uint `json:"game_id,omitempty"`
	PickID  *uint `gorm:"index" json:"pick_id,omitempty"`
	Week    int   `gorm:"not null" json:"week"`

	OldValue datatypes.JSON `json:"old_value,omitempty"`
	NewValue datatypes.JSON `json:"new_value,omitempty"`

	ActingUserID uint   `gorm:"not null;index" json:"acting_user_id"`
	Reason       string `json:"reason,omitempty"`
	IsOverride   bool   `gorm:"default:false" json:"is_override"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditRecord) TableName() string {
	return "audit_records"
}
