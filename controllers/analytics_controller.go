// controllers/analytics_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutritrack/services"
)

type AnalyticsController struct {
	Svc *services.AnalyticsService
	Loc *time.Location
}

func NewAnalyticsController(svc *services.AnalyticsService, loc *time.Location) *AnalyticsController {
	return &AnalyticsController{Svc: svc, Loc: loc}
}

// GET /summary/daily?date=YYYY-MM-DD
func (h *AnalyticsController) GetDailySummary(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Svc.DailySummary(c.Request.Context(), userID, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /summary/weekly?week_start=YYYY-MM-DD
func (h *AnalyticsController) GetWeeklyOverview(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	weekStart, ok := dateQuery(c, "week_start", h.Loc)
	if !ok {
		return
	}
	out, err := h.Svc.WeeklyOverview(c.Request.Context(), userID, weekStart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
