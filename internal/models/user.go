package models

import "time"

// UserRole controls access to the administrative surface
type UserRole string

const (
	RoleParticipant  UserRole = "participant"
	RoleCommissioner UserRole = "commissioner"
	RoleAdmin        UserRole = "admin"
)

// User represents an authenticated account. Authentication itself is
// handled by the host platform; this core only consumes the user id and
// role carried in the JWT.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	Role      UserRole  `gorm:"type:varchar(50);default:'participant'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// CanOverride reports whether the user may use the commissioner
// correction path.
func (u *User) CanOverride() bool {
	return u.Role == RoleCommissioner || u.Role == RoleAdmin
}
