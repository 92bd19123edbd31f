package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/pkg/config"
	"github.com/confpool/confidence-pool/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if err := seedData(db, cfg.Season); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func runMigrations(db *database.DB) error {
	// Enable UUID extension for PostgreSQL
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Auto migrate all models
	if err := db.AutoMigrate(
		&models.User{},
		&models.League{},
		&models.Entry{},
		&models.Game{},
		&models.Pick{},
		&models.AuditRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	// Create indexes
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_games_season_week_kickoff ON games(season, week, kickoff_at)",
		"CREATE INDEX IF NOT EXISTS idx_picks_entry_week ON picks(entry_id, week)",
		"CREATE INDEX IF NOT EXISTS idx_picks_game_locked ON picks(game_id, is_locked)",
		"CREATE INDEX IF NOT EXISTS idx_audit_entry_week ON audit_records(entry_id, week)",
		"CREATE INDEX IF NOT EXISTS idx_entries_league_active ON entries(league_id, is_active)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func dropTables(db *database.DB) error {
	// Drop tables in reverse order to handle foreign key constraints
	tables := []string{
		"audit_records",
		"picks",
		"games",
		"entries",
		"leagues",
		"users",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	return nil
}

func seedData(db *database.DB, season int) error {
	commissioner := &models.User{
		Email: "commissioner@example.com",
		Name:  "Pool Commissioner",
		Role:  models.RoleCommissioner,
	}
	if err := db.Create(commissioner).Error; err != nil {
		return fmt.Errorf("failed to create commissioner: %w", err)
	}

	participants := []models.User{
		{Email: "alice@example.com", Name: "Alice", Role: models.RoleParticipant},
		{Email: "bob@example.com", Name: "Bob", Role: models.RoleParticipant},
		{Email: "carol@example.com", Name: "Carol", Role: models.RoleParticipant},
	}
	if err := db.Create(&participants).Error; err != nil {
		return fmt.Errorf("failed to create participants: %w", err)
	}

	league := &models.League{
		Name:            "Office Pool",
		Season:          season,
		Timezone:        "America/New_York",
		ReminderOffsets: pq.Int64Array{60, 24 * 60},
		IsActive:        true,
	}
	if err := db.Create(league).Error; err != nil {
		return fmt.Errorf("failed to create league: %w", err)
	}

	alicePhone := "+15555550100"
	entries := []models.Entry{
		{LeagueID: league.ID, UserID: participants[0].ID, Name: "Alice's Picks", Phone: &alicePhone, IsActive: true},
		{LeagueID: league.ID, UserID: participants[1].ID, Name: "Bob's Squad", IsActive: true},
		{LeagueID: league.ID, UserID: participants[2].ID, Name: "Carol FTW", IsActive: true},
	}
	if err := db.Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to create entries: %w", err)
	}

	// A small week 1 slate: a Thursday opener and a Sunday run
	loc, err := time.LoadLocation(league.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load league timezone: %w", err)
	}
	thursday := nextWeekday(time.Now().In(loc), time.Thursday)
	opener := time.Date(thursday.Year(), thursday.Month(), thursday.Day(), 20, 15, 0, 0, loc)
	sunday := opener.AddDate(0, 0, 3)
	early := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 13, 0, 0, 0, loc)
	late := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 16, 25, 0, 0, loc)

	games := []models.Game{
		{Season: season, Week: 1, KickoffAt: &opener, HomeTeam: "KC", AwayTeam: "BAL", HomeTeamName: "Kansas City Chiefs", AwayTeamName: "Baltimore Ravens"},
		{Season: season, Week: 1, KickoffAt: &early, HomeTeam: "GB", AwayTeam: "CHI", HomeTeamName: "Green Bay Packers", AwayTeamName: "Chicago Bears"},
		{Season: season, Week: 1, KickoffAt: &early, HomeTeam: "BUF", AwayTeam: "NYJ", HomeTeamName: "Buffalo Bills", AwayTeamName: "New York Jets"},
		{Season: season, Week: 1, KickoffAt: &late, HomeTeam: "DAL", AwayTeam: "PHI", HomeTeamName: "Dallas Cowboys", AwayTeamName: "Philadelphia Eagles"},
	}
	for i := range games {
		games[i].Status = models.GameScheduled
	}
	if err := db.Create(&games).Error; err != nil {
		return fmt.Errorf("failed to create games: %w", err)
	}

	logrus.Infof("Seeded league %q with %d entries and %d week 1 games", league.Name, len(entries), len(games))
	return nil
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	days := (int(day) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days)
}
