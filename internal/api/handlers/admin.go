package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/confpool/confidence-pool/internal/api/middleware"
	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// AdminHandler exposes the commissioner correction surface: missing
// pick reports, per-entry pick state, overrides and conflict review.
type AdminHandler struct {
	ledger    *services.PickLockLedger
	engine    *services.CommissionerOverrideEngine
	scheduler *services.LiveWindowScheduler
}

func NewAdminHandler(ledger *services.PickLockLedger, engine *services.CommissionerOverrideEngine, scheduler *services.LiveWindowScheduler) *AdminHandler {
	return &AdminHandler{
		ledger:    ledger,
		engine:    engine,
		scheduler: scheduler,
	}
}

// GetMissingPicks lists entries with locked games lacking a pick
func (h *AdminHandler) GetMissingPicks(c *gin.Context) {
	leagueID, ok := parseUintParam(c, "leagueID")
	if !ok {
		return
	}
	week, ok := parseWeekParam(c)
	if !ok {
		return
	}

	reports, err := h.ledger.UsersWithMissingPicks(c.Request.Context(), leagueID, week)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"league_id": leagueID,
		"week":      week,
		"missing":   reports,
	})
}

// GetEntryPickState returns one entry's per-game pick classification
func (h *AdminHandler) GetEntryPickState(c *gin.Context) {
	entryID, ok := parseUintParam(c, "entryID")
	if !ok {
		return
	}
	week, ok := parseWeekParam(c)
	if !ok {
		return
	}

	state, err := h.ledger.EntryPickState(c.Request.Context(), entryID, week)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, state)
}

// AssignPick creates a pick on a locked game for an entry that missed it
func (h *AdminHandler) AssignPick(c *gin.Context) {
	// Points carries no binding tag: zero must reach the engine so the
	// caller sees POINTS_OUT_OF_RANGE rather than a bind failure.
	var req struct {
		EntryID uint   `json:"entry_id" binding:"required"`
		GameID  uint   `json:"game_id" binding:"required"`
		Week    int    `json:"week" binding:"required,min=1"`
		Points  int    `json:"points"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	actingUserID := middleware.UserIDFromContext(c)
	pick, err := h.engine.AssignMissingPick(c.Request.Context(), req.EntryID, req.GameID, req.Week, req.Points, actingUserID, req.Reason)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, pick)
}

// UpdatePickPoints reassigns an existing pick's confidence points
func (h *AdminHandler) UpdatePickPoints(c *gin.Context) {
	pickID, ok := parseUintParam(c, "pickID")
	if !ok {
		return
	}

	var req struct {
		Points int    `json:"points"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	actingUserID := middleware.UserIDFromContext(c)
	pick, err := h.engine.UpdatePickPoints(c.Request.Context(), pickID, req.Points, actingUserID, req.Reason)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, pick)
}

// GetPointsConflicts lists standing duplicate point assignments
func (h *AdminHandler) GetPointsConflicts(c *gin.Context) {
	leagueID, ok := parseUintParam(c, "leagueID")
	if !ok {
		return
	}
	week, ok := parseWeekParam(c)
	if !ok {
		return
	}

	conflicts, err := h.ledger.PointsConflicts(c.Request.Context(), leagueID, week)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"league_id": leagueID,
		"week":      week,
		"conflicts": conflicts,
	})
}

// GetSchedulerStatus reports the live window scheduler's state
func (h *AdminHandler) GetSchedulerStatus(c *gin.Context) {
	utils.SendSuccess(c, h.scheduler.Status())
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid "+name, err.Error())
		return 0, false
	}
	return uint(id), true
}

func parseWeekParam(c *gin.Context) (int, bool) {
	raw := c.Param("week")
	week, err := strconv.Atoi(raw)
	if err != nil || week < 1 {
		utils.SendValidationError(c, "Invalid week", "week must be a positive integer")
		return 0, false
	}
	return week, true
}
