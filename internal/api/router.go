package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/confpool/confidence-pool/internal/api/handlers"
	"github.com/confpool/confidence-pool/internal/api/middleware"
	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/config"
	"github.com/confpool/confidence-pool/pkg/database"
)

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(
	group *gin.RouterGroup,
	db *database.DB,
	cache *services.CacheService,
	cfg *config.Config,
	lock *services.GameLockEvaluator,
	schedule *services.ScheduleService,
	resolver *services.WeekResolver,
	scheduler *services.LiveWindowScheduler,
	logger *logrus.Logger,
) {
	// Services owned by the HTTP surface
	ledger := services.NewPickLockLedger(db, lock, logger)
	engine := services.NewCommissionerOverrideEngine(db, ledger, lock, logger)
	standings := services.NewStandingsService(db, cache, logger)

	// Initialize handlers
	gamesHandler := handlers.NewGamesHandler(schedule, resolver, cache, cfg.Season)
	picksHandler := handlers.NewPicksHandler(db, ledger)
	standingsHandler := handlers.NewStandingsHandler(standings)
	adminHandler := handlers.NewAdminHandler(ledger, engine, scheduler)

	// Public read surface
	group.GET("/games/current-week", gamesHandler.GetCurrentWeek)
	group.GET("/games/weeks/:week", gamesHandler.GetWeekGames)
	group.GET("/leagues/:leagueID/standings", standingsHandler.GetSeasonStandings)
	group.GET("/leagues/:leagueID/weeks/:week/standings", standingsHandler.GetWeekStandings)

	// Entry-scoped routes: token required, entry ownership checked in
	// the handler so commissioners can still read any entry.
	auth := group.Group("")
	auth.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		auth.GET("/entries/:entryID/weeks/:week/pick-state", picksHandler.GetEntryPickState)
	}

	// Commissioner correction surface
	admin := group.Group("/admin")
	admin.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.CommissionerRequired())
	{
		admin.GET("/leagues/:leagueID/weeks/:week/missing-picks", adminHandler.GetMissingPicks)
		admin.GET("/leagues/:leagueID/weeks/:week/conflicts", adminHandler.GetPointsConflicts)
		admin.GET("/entries/:entryID/weeks/:week/pick-state", adminHandler.GetEntryPickState)
		admin.POST("/picks/assign", adminHandler.AssignPick)
		admin.PUT("/picks/:pickID/points", adminHandler.UpdatePickPoints)
		admin.GET("/scheduler/status", adminHandler.GetSchedulerStatus)
	}
}
