package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/confpool/confidence-pool/internal/api/middleware"
	"github.com/confpool/confidence-pool/internal/models"
	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/database"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// PicksHandler serves an entry's own pick state to its owner. The full
// editability classification comes from the ledger, so participants see
// exactly what the commissioner surface sees for their entry.
type PicksHandler struct {
	db     *database.DB
	ledger *services.PickLockLedger
}

func NewPicksHandler(db *database.DB, ledger *services.PickLockLedger) *PicksHandler {
	return &PicksHandler{
		db:     db,
		ledger: ledger,
	}
}

// GetEntryPickState returns the caller's pick state for one week
func (h *PicksHandler) GetEntryPickState(c *gin.Context) {
	entryID, ok := parseUintParam(c, "entryID")
	if !ok {
		return
	}
	week, ok := parseWeekParam(c)
	if !ok {
		return
	}

	var entry models.Entry
	if err := h.db.WithContext(c.Request.Context()).First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Entry not found")
			return
		}
		utils.SendInternalError(c, "Failed to load entry")
		return
	}

	userID := middleware.UserIDFromContext(c)
	role := models.UserRole(c.GetString("role"))
	if entry.UserID != userID && role != models.RoleCommissioner && role != models.RoleAdmin {
		utils.SendForbidden(c, "Entry belongs to another user")
		return
	}

	state, err := h.ledger.EntryPickState(c.Request.Context(), entryID, week)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, state)
}
