package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/utils"
)

// StandingsHandler serves weekly and season standings for a league.
type StandingsHandler struct {
	standings *services.StandingsService
}

func NewStandingsHandler(standings *services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standings: standings}
}

// GetWeekStandings returns one week's ranked standings
func (h *StandingsHandler) GetWeekStandings(c *gin.Context) {
	leagueID, ok := parseUintParam(c, "leagueID")
	if !ok {
		return
	}
	week, ok := parseWeekParam(c)
	if !ok {
		return
	}

	rows, err := h.standings.WeekStandings(c.Request.Context(), leagueID, week)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"league_id": leagueID,
		"week":      week,
		"standings": rows,
	})
}

// GetSeasonStandings returns the cumulative season standings
func (h *StandingsHandler) GetSeasonStandings(c *gin.Context) {
	leagueID, ok := parseUintParam(c, "leagueID")
	if !ok {
		return
	}

	rows, err := h.standings.SeasonStandings(c.Request.Context(), leagueID)
	if err != nil {
		utils.SendPickError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"league_id": leagueID,
		"standings": rows,
	})
}
