package models

import "gorm.io/gorm"

// DailyGoal holds the daily nutrient intake targets of one user.
type DailyGoal struct {
	gorm.Model
	UserID   uint    `gorm:"uniqueIndex;not null" json:"user_id"`
	Calories float64 `json:"calories"` // e.g. 2200 kcal
	Protein  float64 `json:"protein"`  // e.g. 120 g
	Carbs    float64 `json:"carbs"`    // e.g. 275 g
	Fat      float64 `json:"fat"`      // e.g. 70 g
	Sodium   float64 `json:"sodium"`   // e.g. 2300 mg
	Sugar    float64 `json:"sugar"`    // e.g. 50 g
	Fiber    float64 `json:"fiber"`    // e.g. 30 g
}
