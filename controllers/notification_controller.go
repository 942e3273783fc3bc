package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutritrack/services"
)

type NotificationController struct {
	Push   *services.PushService
	Alerts *services.AlertBus
	Loc    *time.Location
}

func NewNotificationController(p *services.PushService, a *services.AlertBus, loc *time.Location) *NotificationController {
	return &NotificationController{Push: p, Alerts: a, Loc: loc}
}

type toggleReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// POST /notifications/toggle
func (h *NotificationController) Toggle(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if err := h.Push.SetNotifications(c.Request.Context(), uid, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notifications updated", "enabled": *req.Enabled})
}

// GET /alerts?date=YYYY-MM-DD
func (h *NotificationController) ListAlerts(c *gin.Context) {
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
	out, err := h.Alerts.ListAlerts(c.Request.Context(), uid, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
