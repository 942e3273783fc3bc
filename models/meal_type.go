package models

import (
	"strings"
	"time"
)

type MealType string

const (
	MealBreakfast MealType = "Breakfast"
	MealLunch     MealType = "Lunch"
	MealDinner    MealType = "Dinner"
	MealSnack     MealType = "Snack"
)

// ParseMealType accepts any casing of the four meal types.
func ParseMealType(s string) (MealType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast":
		return MealBreakfast, true
	case "lunch":
		return MealLunch, true
	case "dinner":
		return MealDinner, true
	case "snack":
		return MealSnack, true
	}
	return "", false
}

// DefaultMealType picks the meal type for the local hour of t:
// 05–10 breakfast, 11–15 lunch, 16–21 dinner, otherwise snack.
func DefaultMealType(t time.Time) MealType {
	h := t.Hour()
	switch {
	case h >= 5 && h < 11:
		return MealBreakfast
	case h >= 11 && h < 16:
		return MealLunch
	case h >= 16 && h < 22:
		return MealDinner
	default:
		return MealSnack
	}
}

// DayKey is the calendar day of t in loc, formatted YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02")
}
