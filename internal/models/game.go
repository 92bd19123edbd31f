package models

import "time"

// GameStatus represents the lifecycle of a scheduled game
type GameStatus string

const (
	GameScheduled  GameStatus = "scheduled"
	GameInProgress GameStatus = "in_progress"
	GameCompleted  GameStatus = "completed"
)

// Winner values derived when a game completes
const (
	WinnerHome = "home"
	WinnerAway = "away"
	WinnerTie  = "tie"
)

// Game represents one game on a week's slate. The slate is shared by
// every league running the same season. Rows are created by schedule
// import; status, scores and kickoff are kept current by the score
// sync service.
type Game struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExternalID string `gorm:"index" json:"external_id"` // provider event id
	Season     int    `gorm:"not null;index:idx_season_week,priority:1" json:"season"`
	Week       int    `gorm:"not null;index:idx_season_week,priority:2" json:"week"`

	// Nil when the schedule source did not supply a parseable kickoff;
	// such games lock on status alone.
	KickoffAt *time.Time `gorm:"index" json:"kickoff_at,omitempty"`

	Status GameStatus `gorm:"type:varchar(50);default:'scheduled';index" json:"status"`

	HomeTeam     string `gorm:"not null" json:"home_team"` // abbreviation, e.g. "GB"
	AwayTeam     string `gorm:"not null" json:"away_team"`
	HomeTeamName string `json:"home_team_name"`
	AwayTeamName string `json:"away_team_name"`
	HomeScore    int    `gorm:"default:0" json:"home_score"`
	AwayScore    int    `gorm:"default:0" json:"away_score"`
	Winner       string `json:"winner"` // "home", "away" or "tie"; empty until completed

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Game) TableName() string {
	return "games"
}

// HasKickoff reports whether the schedule supplied a usable kickoff
// instant.
func (g *Game) HasKickoff() bool {
	return g.KickoffAt != nil && !g.KickoffAt.IsZero()
}

func (g *Game) IsCompleted() bool {
	return g.Status == GameCompleted
}

func (g *Game) IsInProgress() bool {
	return g.Status == GameInProgress
}

// ComputeWinner derives the winner side from the final score.
func (g *Game) ComputeWinner() string {
	switch {
	case g.HomeScore > g.AwayScore:
		return WinnerHome
	case g.AwayScore > g.HomeScore:
		return WinnerAway
	default:
		return WinnerTie
	}
}
