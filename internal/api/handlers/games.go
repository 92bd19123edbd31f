package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// GamesHandler serves the schedule read surface: the resolved current
// week and each week's slate with live scores.
type GamesHandler struct {
	schedule *services.ScheduleService
	resolver *services.WeekResolver
	cache    *services.CacheService
	season   int
}

func NewGamesHandler(schedule *services.ScheduleService, resolver *services.WeekResolver, cache *services.CacheService, season int) *GamesHandler {
	return &GamesHandler{
		schedule: schedule,
		resolver: resolver,
		cache:    cache,
		season:   season,
	}
}

// GetCurrentWeek resolves which week the pool is currently on
func (h *GamesHandler) GetCurrentWeek(c *gin.Context) {
	ctx := c.Request.Context()
	cacheKey := services.CurrentWeekCacheKey(h.season)

	var week int
	if err := h.cache.Get(ctx, cacheKey, &week); err == nil {
		utils.SendSuccess(c, gin.H{"season": h.season, "week": week})
		return
	}

	games, err := h.schedule.SeasonSnapshot(ctx, h.season)
	if err != nil {
		utils.SendInternalError(c, "Failed to load schedule")
		return
	}

	week, err = h.resolver.ResolveCurrentWeek(games, time.Now())
	if err != nil {
		utils.SendInternalError(c, "Failed to resolve current week")
		return
	}

	// Short TTL: hysteresis can move the answer while games are live.
	h.cache.Set(ctx, cacheKey, week, time.Minute)

	utils.SendSuccess(c, gin.H{"season": h.season, "week": week})
}

// GetWeekGames returns the slate for one week with current scores
func (h *GamesHandler) GetWeekGames(c *gin.Context) {
	weekStr := c.Param("week")
	week, err := strconv.Atoi(weekStr)
	if err != nil || week < 1 {
		utils.SendValidationError(c, "Invalid week", "week must be a positive integer")
		return
	}

	games, err := h.schedule.WeekGames(c.Request.Context(), h.season, week)
	if err != nil {
		utils.SendInternalError(c, "Failed to load week games")
		return
	}

	utils.SendSuccess(c, gin.H{
		"season": h.season,
		"week":   week,
		"games":  games,
	})
}
