package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutritrack/services"
)

type MealController struct {
	Meals *services.MealService
	Loc   *time.Location
}

func NewMealController(ms *services.MealService, loc *time.Location) *MealController {
	return &MealController{Meals: ms, Loc: loc}
}

// dateRange reads ?from=&to= as whole days; to is inclusive.
func (h *MealController) dateRange(c *gin.Context) (from, to time.Time, ok bool) {
	if from, ok = dateQuery(c, "from", h.Loc); !ok {
		return
	}
	if to, ok = dateQuery(c, "to", h.Loc); !ok {
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		badRequest(c, "`to` must be on/after `from`")
		return from, to, false
	}
	return from, to, true
}

// GET /meals?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *MealController) List(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	meals, err := h.Meals.ListMeals(c.Request.Context(), uid, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meals)
}

// GET /meals/warnings
func (h *MealController) Warnings(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	out, err := h.Meals.ListMealsWithWarnings(c.Request.Context(), uid, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /meals/:id
func (h *MealController) Get(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	meal, err := h.Meals.GetMeal(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

// DELETE /meals/:id
func (h *MealController) Delete(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.Meals.DeleteMeal(c.Request.Context(), uid, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
