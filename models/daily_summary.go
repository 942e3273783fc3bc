package models

import "time"

// DailyNutritionSummary holds running totals for one user and calendar day.
// At most one row exists per (user_id, day); commits add to it, they never
// recompute it.
type DailyNutritionSummary struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_daily_summary_user_day,priority:1" json:"user_id"`
	Day    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_summary_user_day,priority:2" json:"day"`

	Totals Nutrients `gorm:"embedded;embeddedPrefix:total_" json:"totals"`

	BreakfastCalories float64 `json:"breakfast_calories"`
	LunchCalories     float64 `json:"lunch_calories"`
	DinnerCalories    float64 `json:"dinner_calories"`
	SnackCalories     float64 `json:"snack_calories"`
	MealCount         int     `json:"meal_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddMeal folds one meal's totals into the summary.
func (s *DailyNutritionSummary) AddMeal(mealType MealType, totals Nutrients) {
	s.Totals = s.Totals.Add(totals)
	*s.bucket(mealType) += totals.Calories
	s.MealCount++
}

// RemoveMeal reverses AddMeal for a deleted meal.
func (s *DailyNutritionSummary) RemoveMeal(mealType MealType, totals Nutrients) {
	s.Totals = s.Totals.Sub(totals)
	*s.bucket(mealType) -= totals.Calories
	if s.MealCount > 0 {
		s.MealCount--
	}
}

func (s *DailyNutritionSummary) bucket(mealType MealType) *float64 {
	switch mealType {
	case MealBreakfast:
		return &s.BreakfastCalories
	case MealLunch:
		return &s.LunchCalories
	case MealDinner:
		return &s.DinnerCalories
	default:
		return &s.SnackCalories
	}
}
