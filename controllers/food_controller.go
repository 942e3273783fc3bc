package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nutritrack/classifier"
	"nutritrack/services"
)

type FoodController struct {
	Foods *services.FoodService
}

func NewFoodController(fs *services.FoodService) *FoodController {
	return &FoodController{Foods: fs}
}

// GET /foods?q=adobo&limit=20
func (h *FoodController) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	out, err := h.Foods.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /foods/:name accepts a canonical dish name or a classifier label.
func (h *FoodController) Get(c *gin.Context) {
	name := c.Param("name")
	if dish, ok := classifier.ToDishName(name); ok {
		name = dish
	}
	food, err := h.Foods.GetFoodByName(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, food)
}
