// controllers/activity_log_controller.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nutritrack/services"
)

type ActivityController struct {
	Svc *services.ActivityService
	Loc *time.Location
}

func NewActivityController(svc *services.ActivityService, loc *time.Location) *ActivityController {
	return &ActivityController{Svc: svc, Loc: loc}
}

// GET /activity?date=YYYY-MM-DD&limit=50
func (h *ActivityController) Recent(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	day, ok := dateQuery(c, "date", h.Loc)
	if !ok {
		return
	}
	key := ""
	if !day.IsZero() {
		key = day.Format("2006-01-02")
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	out, err := h.Svc.Recent(c.Request.Context(), uid, key, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /activity/meals/:id
func (h *ActivityController) ByMeal(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	out, err := h.Svc.ByMeal(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
