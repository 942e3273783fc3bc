// controllers/daily_goal_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nutritrack/services"
)

type GoalController struct {
	Goals *services.GoalService
}

func NewGoalController(gs *services.GoalService) *GoalController {
	return &GoalController{Goals: gs}
}

// GET /goals
func (h *GoalController) Get(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	goal, err := h.Goals.GetGoal(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

// PUT /goals
func (h *GoalController) Update(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var in services.GoalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	goal, err := h.Goals.UpsertGoal(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

// GET /goals/progress?date=YYYY-MM-DD
func (h *GoalController) Progress(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Goals.Progress(c.Request.Context(), uid, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
